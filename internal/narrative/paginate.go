package narrative

import "strings"

// DefaultMaxBlockLength is the longest text a single rendered entry may hold
const DefaultMaxBlockLength = 1024

// Paginate splits text into blocks of at most max runes, breaking on line
// boundaries. A single line longer than max is split mid-line.
func Paginate(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxBlockLength
	}
	if runeLen(text) <= max {
		return []string{text}
	}

	var blocks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if block := strings.TrimSuffix(cur.String(), "\n"); block != "" {
			blocks = append(blocks, block)
		}
		cur.Reset()
		curLen = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		n := runeLen(strings.TrimSuffix(line, "\n"))
		if curLen > 0 && curLen+n > max {
			flush()
		}
		for n > max {
			r := []rune(line)
			blocks = append(blocks, string(r[:max]))
			line = string(r[max:])
			n = runeLen(strings.TrimSuffix(line, "\n"))
		}
		cur.WriteString(line)
		curLen += runeLen(line)
	}
	flush()
	return blocks
}

func runeLen(s string) int {
	return len([]rune(s))
}
