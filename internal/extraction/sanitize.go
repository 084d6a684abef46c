package extraction

import (
	"regexp"
	"strings"
)

// garbage the recognizers are known to emit
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile("\uFFFD+"),
	regexp.MustCompile(`[□■◆◇☐▯]+`),
	regexp.MustCompile(`[|_~]{2,}`),
	regexp.MustCompile(`\*{2,}`),
	regexp.MustCompile(`(?i)<br\s*/?>`),
}

// space, tab, no-break space, ideographic space
const horizSpace = " \t\u00a0\u3000"

var (
	reNewline     = regexp.MustCompile(`\r\n?`)
	reHorizSpaces = regexp.MustCompile("[" + horizSpace + "]{2,}")
	reBlankRun    = regexp.MustCompile(`\n{4,}`)
)

// Sanitize removes recognizer noise and irregular whitespace from raw text.
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	text = reNewline.ReplaceAllString(text, "\n")

	// removing one cluster can join the halves of another
	for {
		before := text
		for _, re := range noisePatterns {
			text = re.ReplaceAllString(text, "")
		}
		if text == before {
			break
		}
	}

	text = reHorizSpaces.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.Trim(lines[i], horizSpace)
	}
	text = strings.Join(lines, "\n")

	// three or more blank lines become one
	return reBlankRun.ReplaceAllString(text, "\n\n")
}
