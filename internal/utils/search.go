package utils

import (
	"bytes"
	"unicode/utf16"
)

// Match is a hit of IndexFold.
type Match struct {
	Offset int
	// UTF16 is set when the needle matched as UTF-16LE text.
	UTF16 bool
}

// IndexFold finds needle in data ignoring ASCII case, first as single byte
// text and then as UTF-16LE, which the game uses for some text files. It
// returns false when neither form is present.
func IndexFold(data []byte, needle string) (Match, bool) {
	if needle == "" {
		return Match{}, true
	}

	lower := asciiLower(data)
	n := asciiLower([]byte(needle))
	if i := bytes.Index(lower, n); i >= 0 {
		return Match{Offset: i}, true
	}

	wide := make([]byte, 0, len(n)*2)
	for _, u := range utf16.Encode([]rune(string(n))) {
		wide = append(wide, byte(u), byte(u>>8))
	}
	// UTF-16 text starts on an even offset
	for from := 0; from < len(lower); {
		i := bytes.Index(lower[from:], wide)
		if i < 0 {
			break
		}
		if (from+i)%2 == 0 {
			return Match{Offset: from + i, UTF16: true}, true
		}
		from += i + 1
	}
	return Match{}, false
}

func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

// LineAt returns the single byte text line around offset, without its line
// terminator.
func LineAt(data []byte, offset int) string {
	start := bytes.LastIndexByte(data[:offset], '\n') + 1
	end := bytes.IndexByte(data[offset:], '\n')
	if end < 0 {
		end = len(data)
	} else {
		end += offset
	}
	return string(bytes.TrimRight(data[start:end], "\r"))
}
