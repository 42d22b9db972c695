package ttsnorm

import "strings"

var ones = []string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen",
	"sixteen", "seventeen", "eighteen", "nineteen",
}

var tens = []string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy",
	"eighty", "ninety",
}

var scales = []struct {
	value int64
	name  string
}{
	{1_000_000_000_000, "trillion"},
	{1_000_000_000, "billion"},
	{1_000_000, "million"},
	{1_000, "thousand"},
}

// Cardinal spells out n in English words.
func Cardinal(n int64) string {
	if n < 0 {
		return "minus " + Cardinal(-n)
	}
	if n < 20 {
		return ones[n]
	}
	if n < 100 {
		word := tens[n/10]
		if n%10 != 0 {
			word += "-" + ones[n%10]
		}
		return word
	}
	if n < 1000 {
		word := ones[n/100] + " hundred"
		if n%100 != 0 {
			word += " " + Cardinal(n%100)
		}
		return word
	}
	for _, scale := range scales {
		if n >= scale.value {
			word := Cardinal(n/scale.value) + " " + scale.name
			if n%scale.value != 0 {
				word += " " + Cardinal(n%scale.value)
			}
			return word
		}
	}
	return ones[0]
}

// irregularOrdinals maps cardinal final words to their ordinal forms.
var irregularOrdinals = map[string]string{
	"one":    "first",
	"two":    "second",
	"three":  "third",
	"five":   "fifth",
	"eight":  "eighth",
	"nine":   "ninth",
	"twelve": "twelfth",
}

// Ordinal spells out n as an English ordinal.
func Ordinal(n int64) string {
	cardinal := Cardinal(n)

	// Only the final word changes: "twenty-one" becomes "twenty-first".
	cut := strings.LastIndexAny(cardinal, " -")
	prefix, last := "", cardinal
	if cut >= 0 {
		prefix, last = cardinal[:cut+1], cardinal[cut+1:]
	}

	switch {
	case irregularOrdinals[last] != "":
		last = irregularOrdinals[last]
	case strings.HasSuffix(last, "y"):
		last = strings.TrimSuffix(last, "y") + "ieth"
	default:
		last += "th"
	}
	return prefix + last
}

// yearWords reads a four-digit year the way it is spoken: 1984 is
// "nineteen eighty-four", 1905 is "nineteen oh five", 2007 is
// "two thousand seven".
func yearWords(y int64) string {
	if y < 1000 || y > 9999 {
		return Cardinal(y)
	}
	if y >= 2000 && y < 2010 {
		if y == 2000 {
			return "two thousand"
		}
		return "two thousand " + Cardinal(y-2000)
	}
	hi, lo := y/100, y%100
	switch {
	case lo == 0:
		return Cardinal(hi) + " hundred"
	case lo < 10:
		return Cardinal(hi) + " oh " + Cardinal(lo)
	default:
		return Cardinal(hi) + " " + Cardinal(lo)
	}
}

// digitWords reads digits one by one, as in the fractional part of a number.
func digitWords(digits string) string {
	words := make([]string, 0, len(digits))
	for _, d := range digits {
		if d < '0' || d > '9' {
			continue
		}
		words = append(words, ones[d-'0'])
	}
	return strings.Join(words, " ")
}
