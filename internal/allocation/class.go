package allocation

import "encoding/json"

// Statistics holds per-category value counts for a set of students.
type Statistics struct {
	Academic   map[string]int `json:"academic"`
	Behaviour  map[string]int `json:"behaviour"`
	Gender     map[string]int `json:"gender"`
	PriorClass map[string]int `json:"priorClass"`
}

// NewStatistics returns an empty summary with every category initialised.
func NewStatistics() Statistics {
	return Statistics{
		Academic:   map[string]int{},
		Behaviour:  map[string]int{},
		Gender:     map[string]int{},
		PriorClass: map[string]int{},
	}
}

// StatisticsOf counts every category value across students.
func StatisticsOf(students []Student) Statistics {
	stats := NewStatistics()
	for _, s := range students {
		stats.add(s)
	}
	return stats
}

// Count returns how many students hold value for the category.
func (s Statistics) Count(c Category, value string) int {
	return s.counts(c)[value]
}

func (s Statistics) counts(c Category) map[string]int {
	switch c {
	case CategoryAcademic:
		return s.Academic
	case CategoryBehaviour:
		return s.Behaviour
	case CategoryGender:
		return s.Gender
	case CategoryPriorClass:
		return s.PriorClass
	default:
		return nil
	}
}

func (s *Statistics) add(student Student) {
	if s.Academic == nil || s.Behaviour == nil || s.Gender == nil || s.PriorClass == nil {
		*s = s.merged()
	}
	for _, c := range Categories {
		s.counts(c)[student.Value(c)]++
	}
}

// merged fills any nil map while keeping existing counts.
func (s Statistics) merged() Statistics {
	out := NewStatistics()
	for _, c := range Categories {
		for k, v := range s.counts(c) {
			out.counts(c)[k] = v
		}
	}
	return out
}

// Class is an ordered list of students and the statistics over them.
type Class struct {
	Students []Student  `json:"students"`
	Stats    Statistics `json:"stats"`

	members map[string]int
}

// NewClass returns an empty class.
func NewClass() *Class {
	return &Class{Students: []Student{}, Stats: NewStatistics(), members: map[string]int{}}
}

// Size returns the number of students in the class.
func (c *Class) Size() int {
	return len(c.Students)
}

// Add appends a student and updates the statistics incrementally.
func (c *Class) Add(student Student) {
	c.Students = append(c.Students, student)
	c.updateStats(student)
}

func (c *Class) updateStats(student Student) {
	c.Stats.add(student)
	if c.members == nil {
		c.members = map[string]int{}
	}
	c.members[student.FullName]++
}

// RecomputeStats rebuilds statistics and the membership index from the student list.
func (c *Class) RecomputeStats() {
	c.Stats = NewStatistics()
	c.members = make(map[string]int, len(c.Students))
	for _, s := range c.Students {
		c.updateStats(s)
	}
}

// HasName reports whether a student with the given full name is in the class.
func (c *Class) HasName(fullName string) bool {
	if c.members == nil {
		for _, s := range c.Students {
			if s.FullName == fullName {
				return true
			}
		}
		return false
	}
	return c.members[fullName] > 0
}

// IndexOf returns the position of the student with id, or -1.
func (c *Class) IndexOf(studentID string) int {
	for i, s := range c.Students {
		if s.ID == studentID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the class.
func (c *Class) Clone() *Class {
	out := &Class{Students: make([]Student, len(c.Students))}
	copy(out.Students, c.Students)
	out.RecomputeStats()
	return out
}

// UnmarshalJSON decodes a class and rebuilds its statistics from the students.
func (c *Class) UnmarshalJSON(data []byte) error {
	var raw struct {
		Students []Student `json:"students"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Students = raw.Students
	if c.Students == nil {
		c.Students = []Student{}
	}
	c.RecomputeStats()
	return nil
}
