package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/lancfg/internal/lan"
)

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}

// writePlan prints the planned file changes as unified diffs.
func writePlan(w io.Writer, changes []lan.FileChange) {
	for _, c := range changes {
		from, to := c.Path, c.Path
		if c.Old == nil {
			from = "/dev/null"
		}
		if c.Removes() {
			to = "/dev/null"
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLines(c.Old),
			B:        splitLines(c.New),
			FromFile: from,
			ToFile:   to,
			Context:  3,
		})
		if err != nil {
			continue
		}
		if text == "" {
			// mode-only or empty-to-empty change
			text = fmt.Sprintf("--- %s\n+++ %s\n", from, to)
		}
		fmt.Fprint(w, text)
	}
}
