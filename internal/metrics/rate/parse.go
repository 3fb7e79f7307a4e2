package rate

import (
	"strconv"
	"strings"
	"unicode"
)

// firstEpochMillis returns the first run of 12 or more digits in s, which is
// how the venue embeds millisecond timestamps in error text.
func firstEpochMillis(s string) (int64, bool) {
	for _, run := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) {
		if len(run) < 12 {
			continue
		}
		if n, err := strconv.ParseInt(run, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
