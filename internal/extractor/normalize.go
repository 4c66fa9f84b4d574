package extractor

import (
	"strconv"
	"strings"
)

// NormalizePrice keeps only the digits of raw and parses them as a
// non-negative integer. Currency symbols, whitespace and thousands separators
// all vanish, so "$12.990" and "$ 12,990" both give 12990. A string without
// digits (or one too long for int64) is reported as nil.
func NormalizePrice(raw string) *int64 {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
