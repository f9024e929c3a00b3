// FileChange and friends are shared by the repository core, the merger and the diff engine
package shared

import "cmp"

// ChangeType names the operation a FileChange performs
type ChangeType string

const (
	Insert ChangeType = "insert"
	Delete ChangeType = "delete"
	Modify ChangeType = "modify"
	Move   ChangeType = "move"
)

// Operation is a ChangeType plus the destination path for moves
type Operation struct {
	Type    ChangeType `json:"type"`
	NewPath string     `json:"new_path,omitempty"` // Only set for Move
}

// MoveTo builds a Move operation
func MoveTo(newPath string) Operation {
	return Operation{Type: Move, NewPath: newPath}
}

func (o Operation) String() string {
	if o.Type == Move {
		return "move -> " + o.NewPath
	}
	return string(o.Type)
}

// LineMapping pairs an old line number with a new one. Zero means "no line".
type LineMapping struct {
	Old int `json:"old"`
	New int `json:"new"`
}

// CompareLineMappings orders mappings by old line, then new line
func CompareLineMappings(a, b LineMapping) int {
	if c := cmp.Compare(a.Old, b.Old); c != 0 {
		return c
	}
	return cmp.Compare(a.New, b.New)
}

// FileChange is a single change to one repository-relative path
type FileChange struct {
	Path         string        `json:"path"`
	Operation    Operation     `json:"operation"`
	ContentDelta []byte        `json:"content_delta"`
	LineMappings []LineMapping `json:"line_mappings"`
}

// Clone returns a deep copy so callers can't alias stored payloads
func (c FileChange) Clone() FileChange {
	out := c
	if c.ContentDelta != nil {
		out.ContentDelta = append([]byte(nil), c.ContentDelta...)
	}
	if c.LineMappings != nil {
		out.LineMappings = append([]LineMapping(nil), c.LineMappings...)
	}
	return out
}

// CloneChanges deep-copies a change list
func CloneChanges(changes []FileChange) []FileChange {
	if changes == nil {
		return nil
	}
	out := make([]FileChange, len(changes))
	for i, c := range changes {
		out[i] = c.Clone()
	}
	return out
}
