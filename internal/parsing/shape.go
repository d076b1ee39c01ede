package parsing

// CheckShape reports whether raw looks parseable: an <explanation> region, then a
// <top-3> tag, then at least one digit in the selection body. The body ends at the
// first </top-3>, or at the end of raw when the tag is never closed; ParseResponse
// falls back to a whole-text scan in that case.
func CheckShape(raw string) bool {
	from := 0
	for {
		start := indexFold(raw, ExplanationOpen, from)
		if start < 0 {
			return false
		}
		if explEnd := indexFold(raw, ExplanationClose, start+len(ExplanationOpen)); explEnd >= 0 {
			if selOpen := indexFold(raw, SelectionOpen, explEnd+len(ExplanationClose)); selOpen >= 0 {
				body := raw[selOpen+len(SelectionOpen):]
				if end := indexFold(body, SelectionClose, 0); end >= 0 {
					body = body[:end]
				}
				if HasDigit(body) {
					return true
				}
			}
		}
		from = start + 1
	}
}
