package parsing

import (
	"strconv"
	"strings"
)

// Structural tags the prompt templates ask the model to emit
const (
	ExplanationOpen  = "<explanation>"
	ExplanationClose = "</explanation>"
	SelectionOpen    = "<top-3>"
	SelectionClose   = "</top-3>"
)

// Decision is the structured result extracted from one raw model response.
type Decision struct {
	Rationale     string   // text inside <explanation>, trimmed
	SelectionLine string   // text inside <top-3>, or the whole response when tags are missing
	SelectedIDs   []string // persona ids in order of first mention, never nil
	Structured    bool     // true when both tagged regions were found
}

// ParseResponse extracts the rationale and the selected candidates from raw model output.
// It never fails: a response without tags is scanned as a whole, and a response without
// digits yields an empty selection.
func ParseResponse(raw string, personaIDs []string) Decision {
	if raw == "" {
		return Decision{SelectedIDs: []string{}}
	}

	rationale, selection, ok := ExtractRegions(raw)
	if !ok {
		rationale, selection = "", raw
	}

	return Decision{
		Rationale:     rationale,
		SelectionLine: selection,
		SelectedIDs:   ResolveSelection(selection, personaIDs),
		Structured:    ok,
	}
}

// ExtractRegions locates an <explanation> region followed by a <top-3> region.
// Tags match case-insensitively and regions may span lines. The first <explanation>
// that can be completed wins.
func ExtractRegions(raw string) (rationale, selection string, ok bool) {
	from := 0
	for {
		start := indexFold(raw, ExplanationOpen, from)
		if start < 0 {
			return "", "", false
		}
		if r, s, found := completeRegions(raw, start+len(ExplanationOpen)); found {
			return r, s, true
		}
		from = start + 1
	}
}

func completeRegions(raw string, bodyStart int) (string, string, bool) {
	explEnd := indexFold(raw, ExplanationClose, bodyStart)
	if explEnd < 0 {
		return "", "", false
	}
	selOpen := indexFold(raw, SelectionOpen, explEnd+len(ExplanationClose))
	if selOpen < 0 {
		return "", "", false
	}
	selStart := selOpen + len(SelectionOpen)
	selEnd := indexFold(raw, SelectionClose, selStart)
	if selEnd < 0 {
		return "", "", false
	}
	return strings.TrimSpace(raw[bodyStart:explEnd]), strings.TrimSpace(raw[selStart:selEnd]), true
}

// ResolveSelection maps every integer token in selection to a 1-based position in
// personaIDs. Out-of-range positions are dropped; repeated candidates keep their first
// position. Tie lists longer than three are preserved.
func ResolveSelection(selection string, personaIDs []string) []string {
	selected := []string{}
	seen := make(map[string]bool)

	for _, tok := range IntegerTokens(selection) {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 1 || n > len(personaIDs) {
			continue
		}
		id := personaIDs[n-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		selected = append(selected, id)
	}

	return selected
}

// IntegerTokens returns maximal runs of ASCII digits in left-to-right order.
// Candidate numbers are always printed in ASCII, so other Unicode digits are
// treated as text and never select anyone.
func IntegerTokens(s string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// HasDigit reports whether s contains an ASCII digit
func HasDigit(s string) bool {
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// indexFold finds an ASCII tag in s at or after from, ignoring ASCII case.
// Byte offsets stay valid for s because no case mapping is applied to s itself.
func indexFold(s, tag string, from int) int {
	if from < 0 {
		from = 0
	}
	n := len(tag)
	for i := from; i+n <= len(s); i++ {
		if equalFoldASCII(s[i:i+n], tag) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
