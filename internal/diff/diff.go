// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"

	"qvcs/shared/types"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int // 0 for additions
	NewNum  int // 0 for deletions
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	return &Engine{
		contextLines: contextLines,
	}
}

func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	return bytes.Split(bytes.TrimSuffix(content, []byte{'\n'}), []byte{'\n'})
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) *DiffResult {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	result := &DiffResult{}
	lines := e.walk(oldLines, newLines, e.computeLCS(oldLines, newLines))
	result.Hunks = e.group(lines)

	for _, l := range lines {
		switch l.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions
	return result
}

// Mappings returns one (old, new) pair per changed line: (old, 0) for a
// deleted line and (0, new) for an added one. Two edits to the same region
// produce overlapping pairs.
func (e *Engine) Mappings(oldContent, newContent []byte) []shared.LineMapping {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	var out []shared.LineMapping
	for _, l := range e.walk(oldLines, newLines, e.computeLCS(oldLines, newLines)) {
		if l.Type != Context {
			out = append(out, shared.LineMapping{Old: l.OldNum, New: l.NewNum})
		}
	}
	return out
}

// computeLCS creates a matrix for longest common subsequence
func (e *Engine) computeLCS(oldLines, newLines [][]byte) [][]int {
	matrix := make([][]int, len(oldLines)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(newLines)+1)
	}

	for i := 1; i <= len(oldLines); i++ {
		for j := 1; j <= len(newLines); j++ {
			if bytes.Equal(oldLines[i-1], newLines[j-1]) {
				matrix[i][j] = matrix[i-1][j-1] + 1
			} else {
				matrix[i][j] = max(matrix[i-1][j], matrix[i][j-1])
			}
		}
	}

	return matrix
}

// walk backtracks the LCS matrix into a forward, numbered line sequence
func (e *Engine) walk(oldLines, newLines [][]byte, lcs [][]int) []Line {
	var rev []Line
	i, j := len(oldLines), len(newLines)
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && bytes.Equal(oldLines[i-1], newLines[j-1]):
			rev = append(rev, Line{Type: Context, Content: string(oldLines[i-1]), OldNum: i, NewNum: j})
			i--
			j--
		case j > 0 && (i == 0 || lcs[i][j-1] >= lcs[i-1][j]):
			rev = append(rev, Line{Type: Addition, Content: string(newLines[j-1]), NewNum: j})
			j--
		default:
			rev = append(rev, Line{Type: Deletion, Content: string(oldLines[i-1]), OldNum: i})
			i--
		}
	}

	lines := make([]Line, len(rev))
	for k, l := range rev {
		lines[len(rev)-1-k] = l
	}
	return lines
}

// group cuts the line sequence into hunks of changes with up to contextLines
// of surrounding context; runs of changes closer than that share a hunk
func (e *Engine) group(lines []Line) []Hunk {
	var hunks []Hunk
	var cur *Hunk
	lastChange := -1

	for k, l := range lines {
		if l.Type == Context {
			continue
		}
		start := max(0, k-e.contextLines)
		if cur != nil && start <= lastChange+e.contextLines+1 {
			start = lastChange + 1
		} else {
			if cur != nil {
				hunks = append(hunks, e.closeHunk(*cur, lines, lastChange))
			}
			cur = &Hunk{}
		}
		for _, c := range lines[start : k+1] {
			cur.append(c)
		}
		lastChange = k
	}
	if cur != nil {
		hunks = append(hunks, e.closeHunk(*cur, lines, lastChange))
	}
	return hunks
}

func (e *Engine) closeHunk(h Hunk, lines []Line, lastChange int) Hunk {
	end := min(len(lines), lastChange+1+e.contextLines)
	for _, c := range lines[lastChange+1 : end] {
		h.append(c)
	}
	return h
}

func (h *Hunk) append(l Line) {
	if len(h.Lines) == 0 {
		h.OldStart = max(l.OldNum, 1)
		h.NewStart = max(l.NewNum, 1)
	}
	switch l.Type {
	case Context:
		h.OldLines++
		h.NewLines++
	case Addition:
		h.NewLines++
	case Deletion:
		h.OldLines++
	}
	h.Lines = append(h.Lines, l)
}

// Format returns a string representation of the diff
func (r *DiffResult) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteString("+ ")
			case Deletion:
				buf.WriteString("- ")
			case Context:
				buf.WriteString("  ")
			}
			buf.WriteString(line.Content)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}
