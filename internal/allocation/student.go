// Package allocation partitions a student population into balanced classes.
//
// Everything in this package is pure: callers pass the population, the
// resolved request ledger, the options and the source of randomness
// explicitly, and receive fresh values back. Nothing here logs or performs I/O.
package allocation

import "strings"

// UnknownValue is the category value used when a student has no value recorded.
const UnknownValue = "Unknown"

// Category enumerates the attributes a class is balanced on.
type Category int

const (
	CategoryAcademic Category = iota
	CategoryBehaviour
	CategoryGender
	CategoryPriorClass
)

// Categories lists every tracked category in cost order.
var Categories = [...]Category{CategoryAcademic, CategoryBehaviour, CategoryGender, CategoryPriorClass}

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategoryAcademic:
		return "academic"
	case CategoryBehaviour:
		return "behaviour"
	case CategoryGender:
		return "gender"
	case CategoryPriorClass:
		return "priorClass"
	default:
		return "unknown"
	}
}

// Student is a single immutable roster entry.
type Student struct {
	ID              string `json:"id"`
	FirstName       string `json:"firstName"`
	Surname         string `json:"surname"`
	FullName        string `json:"fullName"`
	PriorClass      string `json:"priorClass"`
	Gender          string `json:"gender"`
	Academic        string `json:"academic"`
	Behaviour       string `json:"behaviour"`
	PairRequest     string `json:"pairRequest,omitempty"`
	SeparateRequest string `json:"separateRequest,omitempty"`
}

// Value returns the student's value for a category, UnknownValue when blank.
func (s Student) Value(c Category) string {
	var raw string
	switch c {
	case CategoryAcademic:
		raw = s.Academic
	case CategoryBehaviour:
		raw = s.Behaviour
	case CategoryGender:
		raw = s.Gender
	case CategoryPriorClass:
		raw = s.PriorClass
	}
	if raw = strings.TrimSpace(raw); raw == "" {
		return UnknownValue
	}
	return raw
}
