package pipeline

import "strings"

// PageBreak separates page results in a combined result.
const PageBreak = "\n\n---- page break ----\n\n"

// Combine joins the present results in order, separated by PageBreak.
// Nil results are pages whose inference failed. Whitespace-only results are
// skipped as well: a blank reply carries no text, and counting it would let
// a job succeed with an empty result or add stray page breaks. ok is false
// when nothing remains. A single surviving result is returned verbatim.
func Combine(results []*string) (string, bool) {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || strings.TrimSpace(*r) == "" {
			continue
		}
		parts = append(parts, *r)
	}

	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, PageBreak), true
}
