package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var elevenIDs = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}

func TestParseResponse_TaggedOutput(t *testing.T) {
	raw := "<explanation>Good fit.</explanation><top-3>2, 5, 5, 9</top-3>"

	d := ParseResponse(raw, elevenIDs)

	assert.Equal(t, "Good fit.", d.Rationale)
	assert.Equal(t, "2, 5, 5, 9", d.SelectionLine)
	assert.Equal(t, []string{"b", "e", "i"}, d.SelectedIDs)
	assert.True(t, d.Structured)
}

func TestParseResponse_OutOfRangeDropped(t *testing.T) {
	d := ParseResponse("<explanation>x</explanation><top-3>1, 99, 3</top-3>", elevenIDs)
	assert.Equal(t, []string{"a", "c"}, d.SelectedIDs)
}

func TestParseResponse_FallbackToWholeText(t *testing.T) {
	raw := "I would pick candidates 4, 7 and 11."

	d := ParseResponse(raw, elevenIDs)

	assert.Equal(t, "", d.Rationale)
	assert.Equal(t, raw, d.SelectionLine)
	assert.Equal(t, []string{"d", "g", "k"}, d.SelectedIDs)
	assert.False(t, d.Structured)
}

func TestParseResponse_NoDigits(t *testing.T) {
	d := ParseResponse("<explanation>none stand out</explanation><top-3>none</top-3>", elevenIDs)
	assert.Equal(t, "none stand out", d.Rationale)
	assert.NotNil(t, d.SelectedIDs)
	assert.Empty(t, d.SelectedIDs)
}

func TestParseResponse_Empty(t *testing.T) {
	d := ParseResponse("", elevenIDs)
	assert.Equal(t, "", d.Rationale)
	assert.Equal(t, "", d.SelectionLine)
	assert.NotNil(t, d.SelectedIDs)
	assert.Empty(t, d.SelectedIDs)
}

func TestParseResponse_TieListPreserved(t *testing.T) {
	d := ParseResponse("<explanation>tie</explanation>\n<top-3>1, 5, 8, 9, 10</top-3>", elevenIDs)
	assert.Equal(t, []string{"a", "e", "h", "i", "j"}, d.SelectedIDs)
}

func TestExtractRegions(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		rationale string
		selection string
		ok        bool
	}{
		{
			name:      "multiline with mixed case tags",
			raw:       "Sure!\n<Explanation>\nStrong backend work.\n</EXPLANATION>\n\n<TOP-3> 3, 1, 2 </Top-3>",
			rationale: "Strong backend work.",
			selection: "3, 1, 2",
			ok:        true,
		},
		{
			name: "selection before explanation",
			raw:  "<top-3>1</top-3><explanation>x</explanation>",
			ok:   false,
		},
		{
			name: "missing closing selection tag",
			raw:  "<explanation>x</explanation><top-3>1, 2",
			ok:   false,
		},
		{
			name:      "second explanation completes",
			raw:       "<explanation>a <explanation>b</explanation> <top-3>4</top-3>",
			rationale: "a <explanation>b",
			selection: "4",
			ok:        true,
		},
		{
			name: "no tags",
			raw:  "1, 2, 3",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, s, ok := ExtractRegions(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.rationale, r)
			assert.Equal(t, tt.selection, s)
		})
	}
}

func TestResolveSelection(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		want      []string
	}{
		{"zero is out of range", "0, 1", []string{"a"}},
		{"leading zeros", "007", []string{"g"}},
		{"overflowing number", "99999999999999999999999, 2", []string{"b"}},
		{"digits glued to text", "Candidate#3andCandidate#11", []string{"c", "k"}},
		{"duplicates collapse", "2 2 2 1", []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSelection(tt.selection, elevenIDs))
		})
	}
}

func TestIntegerTokens(t *testing.T) {
	assert.Equal(t, []string{"12", "3", "45"}, IntegerTokens("a12b3 45"))
	assert.Nil(t, IntegerTokens("none"))
	assert.Equal(t, []string{"7"}, IntegerTokens("7"))
	assert.Nil(t, IntegerTokens("\u0661\u0662"))
}

func TestResolveSelection_IgnoresNonASCIIDigits(t *testing.T) {
	ids := []string{"p1", "p2", "p3"}
	assert.Empty(t, ResolveSelection("\u0661, \u0662", ids))
	assert.Equal(t, []string{"p3"}, ResolveSelection("\u0663, 3", ids))
}

func TestHasDigit(t *testing.T) {
	assert.True(t, HasDigit("top 3"))
	assert.False(t, HasDigit("top three"))
	assert.False(t, HasDigit(""))
}
