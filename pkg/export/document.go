package export

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyDocument is returned when there is nothing to render.
var ErrEmptyDocument = errors.New("no classes to export")

// Highlight flags a student whose requests matter in the rendered class list.
type Highlight int

const (
	HighlightNone Highlight = iota
	// HighlightPair marks a student sharing a class with a requested partner.
	HighlightPair
	// HighlightSeparation marks a student sharing a class with someone they
	// asked to be kept apart from. It wins over HighlightPair.
	HighlightSeparation
)

// String returns the label used in flat exports.
func (h Highlight) String() string {
	switch h {
	case HighlightPair:
		return "pair"
	case HighlightSeparation:
		return "separation"
	default:
		return ""
	}
}

// StudentRow is one student line in a class list.
type StudentRow struct {
	ID         string
	FullName   string
	Surname    string
	PriorClass string
	Gender     string
	Academic   string
	Behaviour  string
	Highlight  Highlight
}

// ClassList is a numbered class within a group.
type ClassList struct {
	Number   int
	Students []StudentRow
}

// Title renders the class heading, e.g. "Class 2 (24 students)".
func (c ClassList) Title() string {
	return fmt.Sprintf("Class %d (%d students)", c.Number, len(c.Students))
}

// Sorted returns the students ordered by surname, then full name.
func (c ClassList) Sorted() []StudentRow {
	rows := make([]StudentRow, len(c.Students))
	copy(rows, c.Students)
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := strings.ToLower(rows[i].Surname), strings.ToLower(rows[j].Surname)
		if a != b {
			return a < b
		}
		return strings.ToLower(rows[i].FullName) < strings.ToLower(rows[j].FullName)
	})
	return rows
}

// GroupSheet holds the classes of one year or composite group.
type GroupSheet struct {
	Name    string
	Classes []ClassList
}

// longest returns the size of the largest class in the group.
func (g GroupSheet) longest() int {
	n := 0
	for _, c := range g.Classes {
		if len(c.Students) > n {
			n = len(c.Students)
		}
	}
	return n
}

// Document is the renderer-neutral form of a class generation.
type Document struct {
	Title  string
	Groups []GroupSheet
}

// Empty reports whether the document holds no classes.
func (d Document) Empty() bool {
	for _, g := range d.Groups {
		if len(g.Classes) > 0 {
			return false
		}
	}
	return true
}

// Flat column names for tabular exports.
const (
	ColumnGroup     = "Group"
	ColumnClass     = "Class"
	ColumnStudentID = "Student ID"
	ColumnName      = "Student Name"
	ColumnSurname   = "Surname"
	ColumnOldClass  = "Old Class"
	ColumnGender    = "Gender"
	ColumnAcademic  = "Academic"
	ColumnBehaviour = "Behaviour"
	ColumnFlag      = "Flag"
)

// Dataset flattens the document into one row per student.
func (d Document) Dataset() Dataset {
	data := Dataset{Headers: []string{
		ColumnGroup, ColumnClass, ColumnStudentID, ColumnName, ColumnSurname,
		ColumnOldClass, ColumnGender, ColumnAcademic, ColumnBehaviour, ColumnFlag,
	}}
	for _, g := range d.Groups {
		for _, c := range g.Classes {
			for _, s := range c.Sorted() {
				data.Rows = append(data.Rows, map[string]string{
					ColumnGroup:     g.Name,
					ColumnClass:     fmt.Sprintf("%d", c.Number),
					ColumnStudentID: s.ID,
					ColumnName:      s.FullName,
					ColumnSurname:   s.Surname,
					ColumnOldClass:  s.PriorClass,
					ColumnGender:    s.Gender,
					ColumnAcademic:  s.Academic,
					ColumnBehaviour: s.Behaviour,
					ColumnFlag:      s.Highlight.String(),
				})
			}
		}
	}
	return data
}
