package allocation

import (
	"errors"
	"fmt"
)

var (
	// ErrStudentNotFound is returned when a move names a student absent from the source class.
	ErrStudentNotFound = errors.New("student not found in source class")
	ErrGroupNotFound   = errors.New("group not found")
	ErrClassNotFound   = errors.New("class not found")
)

// Move removes the student from src and inserts it into dst at index, clamped
// to the valid range, then recomputes statistics on both classes. Capacity and
// separation requests are not checked. src and dst may be the same class.
func Move(src, dst *Class, studentID string, index int) error {
	from := src.IndexOf(studentID)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}

	student := src.Students[from]
	src.Students = append(src.Students[:from], src.Students[from+1:]...)

	if index < 0 {
		index = 0
	}
	if index > len(dst.Students) {
		index = len(dst.Students)
	}
	dst.Students = append(dst.Students, Student{})
	copy(dst.Students[index+1:], dst.Students[index:])
	dst.Students[index] = student

	src.RecomputeStats()
	dst.RecomputeStats()
	return nil
}

// SeparationViolations lists the separation requests whose two students share c.
func SeparationViolations(c *Class, ledger Ledger) []Request {
	var out []Request
	for _, req := range ledger.Separations {
		if c.HasName(req.Students[0]) && c.HasName(req.Students[1]) {
			out = append(out, req)
		}
	}
	return out
}

// SatisfiedPairs lists the pairing requests whose two students share c.
func SatisfiedPairs(c *Class, ledger Ledger) []Request {
	var out []Request
	for _, req := range ledger.Pairs {
		if c.HasName(req.Students[0]) && c.HasName(req.Students[1]) {
			out = append(out, req)
		}
	}
	return out
}

// Group is a named, ordered list of classes.
type Group struct {
	Name    string   `json:"name"`
	Classes []*Class `json:"classes"`
}

// Generated is the ordered set of groups produced by one generation.
type Generated struct {
	Groups []*Group `json:"groups"`
}

// Add appends a group. Empty class lists are ignored.
func (g *Generated) Add(name string, classes []*Class) {
	if len(classes) == 0 {
		return
	}
	g.Groups = append(g.Groups, &Group{Name: name, Classes: classes})
}

// Group returns the group with the given name.
func (g *Generated) Group(name string) (*Group, bool) {
	for _, grp := range g.Groups {
		if grp.Name == name {
			return grp, true
		}
	}
	return nil, false
}

// Class resolves a class by group name and zero-based index.
func (g *Generated) Class(group string, index int) (*Class, error) {
	grp, ok := g.Group(group)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	if index < 0 || index >= len(grp.Classes) {
		return nil, fmt.Errorf("%w: %s[%d]", ErrClassNotFound, group, index)
	}
	return grp.Classes[index], nil
}

// MoveRequest addresses a manual reassignment across the generated groups.
type MoveRequest struct {
	SourceGroup string
	SourceClass int
	DestGroup   string
	DestClass   int
	StudentID   string
	Position    int
}

// Move applies a manual reassignment in place.
func (g *Generated) Move(req MoveRequest) error {
	src, err := g.Class(req.SourceGroup, req.SourceClass)
	if err != nil {
		return err
	}
	dst, err := g.Class(req.DestGroup, req.DestClass)
	if err != nil {
		return err
	}
	return Move(src, dst, req.StudentID, req.Position)
}

// StudentCount returns the number of students across every class.
func (g *Generated) StudentCount() int {
	n := 0
	for _, grp := range g.Groups {
		for _, c := range grp.Classes {
			n += c.Size()
		}
	}
	return n
}

// Clone returns a deep copy safe to mutate independently.
func (g *Generated) Clone() *Generated {
	out := &Generated{Groups: make([]*Group, 0, len(g.Groups))}
	for _, grp := range g.Groups {
		cp := &Group{Name: grp.Name, Classes: make([]*Class, len(grp.Classes))}
		for i, c := range grp.Classes {
			cp.Classes[i] = c.Clone()
		}
		out.Groups = append(out.Groups, cp)
	}
	return out
}
