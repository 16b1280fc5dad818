package parser

import "regexp"

// scanPairs collects every key/value capture pair of expr in text.
// Later occurrences of a key overwrite earlier ones. Zero-width matches
// advance the cursor by one byte so the scan always terminates.
func scanPairs(expr *regexp.Regexp, text string) map[string]string {
	pairs := map[string]string{}

	for pos := 0; pos <= len(text); {
		loc := expr.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}

		if len(loc) >= 6 && loc[2] >= 0 && loc[4] >= 0 {
			key := text[pos+loc[2] : pos+loc[3]]
			pairs[key] = text[pos+loc[4] : pos+loc[5]]
		}

		if loc[1] == loc[0] {
			pos += loc[1] + 1
			continue
		}
		pos += loc[1]
	}

	return pairs
}
