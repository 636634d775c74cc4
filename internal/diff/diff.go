package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line is one line of a document comparison.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// Hunk groups consecutive lines of a comparison.
type Hunk struct {
	Lines []Line `json:"lines"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// Documents compares two serialized programs line by line.
func Documents(before, after string) []Hunk {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return []Hunk{{Lines: lines}}
}

// Changed reports whether any hunk holds an added or removed line.
func Changed(hunks []Hunk) bool {
	for _, h := range hunks {
		for _, l := range h.Lines {
			if l.Type != LineContext {
				return true
			}
		}
	}
	return false
}
