package session

import (
	"strconv"
	"strings"
	"unicode"
)

var ordinalWords = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
	"fourth": 4, "4th": 4,
	"fifth": 5, "5th": 5,
}

var cardinalWords = map[string]int{
	"two": 2, "three": 3, "four": 4, "five": 5,
}

// fillers may surround a pick ("I meant the second one, please") without
// turning the reply into something else.
var fillers = map[string]bool{
	"the": true, "one": true, "number": true, "no": true, "option": true, "choice": true,
	"i": true, "mean": true, "meant": true, "want": true, "pick": true, "choose": true,
	"it": true, "its": true, "s": true, "is": true, "that": true, "please": true,
	"ok": true, "okay": true, "yes": true, "yeah": true, "oh": true, "go": true,
	"with": true, "thanks": true,
}

// maxPickWords bounds how long a reply may be and still count as a pick.
const maxPickWords = 6

// Ordinal reads a positional pick such as "the first one", "#2", "2" or
// "last" and returns the zero-based index into a list of n choices. The
// reply must be little more than the pick itself: "call mom at 2" is not a
// pick. Positions outside the list are not a pick either.
func Ordinal(text string, n int) (int, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 || len(words) > maxPickWords {
		return 0, false
	}

	pos := 0
	for i, w := range words {
		p, ok := position(w, n)
		if !ok {
			// "one" is a pick only alone or after "number"/"option"/"no".
			if w == "one" && pos == 0 && (len(words) == 1 || (i > 0 && (words[i-1] == "number" || words[i-1] == "option" || words[i-1] == "no"))) {
				pos = 1
				continue
			}
			if fillers[w] {
				continue
			}
			return 0, false
		}
		if pos != 0 {
			// Two positions ("1 or 2") are not one pick.
			return 0, false
		}
		pos = p
	}
	if pos < 1 || pos > n {
		return 0, false
	}
	return pos - 1, true
}

func position(w string, n int) (int, bool) {
	if w == "last" {
		return n, true
	}
	if p, ok := ordinalWords[w]; ok {
		return p, true
	}
	if p, ok := cardinalWords[w]; ok {
		return p, true
	}
	if p, err := strconv.Atoi(w); err == nil {
		return p, true
	}
	return 0, false
}
