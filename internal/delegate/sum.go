package delegate

import (
	"bytes"
	"slices"
	"strconv"
)

// Sum extracts every whitespace-separated token that parses as a signed
// 64-bit integer.  If at least one does, the reply is the numbers in
// ascending order separated by single spaces, a newline, and their sum.
// Otherwise the request is echoed back.
//
// A token must be a number in full: "12abc" is skipped, not read as 12
// the way a prefix-scanning parser would.  The sum wraps on int64
// overflow.
type Sum struct{}

// Process implements Delegate.
func (Sum) Process(msg []byte) []byte {
	var (
		numbers []int64
		total   int64
	)
	for _, tok := range bytes.Fields(msg) {
		n, err := strconv.ParseInt(string(tok), 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
		total += n
	}
	if len(numbers) == 0 {
		return msg
	}

	slices.Sort(numbers)

	out := make([]byte, 0, len(numbers)*8)
	for i, n := range numbers {
		if i > 0 {
			out = append(out, ' ')
		}
		out = strconv.AppendInt(out, n, 10)
	}
	out = append(out, '\n')
	return strconv.AppendInt(out, total, 10)
}
