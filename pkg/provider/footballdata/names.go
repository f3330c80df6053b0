package footballdata

import (
	"strings"
	"unicode"
)

// maxNameDistance is the largest edit distance accepted when no name contains the other
const maxNameDistance = 2

// commonAffixes are dropped before comparing team names
var commonAffixes = []string{"fc", "afc", "cf", "ac", "sc", "ssc", "as", "us", "club", "calcio", "de"}

// normalizeName lower-cases a team name, keeps letters, digits and single
// spaces and drops club affixes such as "FC"
func normalizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}
	words := strings.Fields(sb.String())
	kept := words[:0]
	for _, w := range words {
		if !isAffix(w) {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return strings.Join(words, " ")
	}
	return strings.Join(kept, " ")
}

func isAffix(w string) bool {
	for _, a := range commonAffixes {
		if w == a {
			return true
		}
	}
	return false
}

// aliases maps common names to the spelling used in the result files
var aliases = map[string]string{
	"manchester city":     "man city",
	"manchester united":   "man united",
	"man utd":             "man united",
	"tottenham hotspur":   "tottenham",
	"spurs":               "tottenham",
	"wolverhampton":       "wolves",
	"newcastle united":    "newcastle",
	"nottingham forest":   "nott m forest",
	"inter milan":         "inter",
	"internazionale":      "inter",
	"psg":                 "paris sg",
	"paris saint germain": "paris sg",
	"atletico madrid":     "ath madrid",
	"athletic bilbao":     "ath bilbao",
}

// MatchTeam returns the name from known closest to name, or "" when nothing is close.
// An exact match after normalisation wins, then a name that contains or is
// contained in the other, then the smallest edit distance up to maxNameDistance.
func MatchTeam(name string, known []string) string {
	want := normalizeName(name)
	if alias, ok := aliases[want]; ok {
		want = alias
	}
	if want == "" {
		return ""
	}

	best, bestDistance := "", maxNameDistance+1
	var contains string
	for _, k := range known {
		n := normalizeName(k)
		if n == want {
			return k
		}
		if contains == "" && (strings.Contains(n, want) || strings.Contains(want, n)) {
			contains = k
		}
		if d := levenshteinDistance(want, n); d < bestDistance {
			best, bestDistance = k, d
		}
	}
	if contains != "" {
		return contains
	}
	return best
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// two rows of the matrix are enough
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			cur[j] = min(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
