package classifier

import "strings"

// punctFold maps punctuation commonly seen in job titles to spaces so that
// "VP, Sales" and "VP Sales" normalize identically.
var punctFold = strings.NewReplacer(
	",", " ",
	";", " ",
	".", " ",
	"/", " ",
	"\\", " ",
	"|", " ",
	"-", " ",
	"–", " ",
	"—", " ",
	"(", " ",
	")", " ",
	"[", " ",
	"]", " ",
	"&", " and ",
	"@", " at ",
)

// NormalizeTitle lowercases a job title, folds punctuation and collapses
// internal whitespace. Normalization is idempotent.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	t = punctFold.Replace(t)
	return strings.Join(strings.Fields(t), " ")
}
