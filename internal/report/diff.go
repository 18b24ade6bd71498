package report

import (
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

const diffContext = 3

// UnifiedDiff renders the change from before to after for path. An empty
// before means the file does not exist yet.
func UnifiedDiff(path, before, after string) string {
	from := "a/" + path
	if before == "" {
		from = "/dev/null"
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(before),
		B:        splitLinesKeepNL(after),
		FromFile: from,
		ToFile:   "b/" + path,
		Context:  diffContext,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return ""
	}
	return s
}

// splitLinesKeepNL splits into lines and keeps newline characters, which
// produces better unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
