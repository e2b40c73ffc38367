package allocation

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classWith(students ...Student) *Class {
	c := NewClass()
	for _, s := range students {
		c.Add(s)
	}
	return c
}

func ids(c *Class) []string {
	out := make([]string, 0, c.Size())
	for _, s := range c.Students {
		out = append(out, s.ID)
	}
	return out
}

func TestClassStatsDefaultUnknown(t *testing.T) {
	c := classWith(
		Student{ID: "1", FullName: "A", Academic: "High", Gender: "Female", PriorClass: "7A", Behaviour: "Good"},
		Student{ID: "2", FullName: "B"},
	)

	assert.Equal(t, 1, c.Stats.Count(CategoryAcademic, "High"))
	assert.Equal(t, 1, c.Stats.Count(CategoryAcademic, UnknownValue))
	assert.Equal(t, 1, c.Stats.Count(CategoryGender, UnknownValue))
	assert.Equal(t, 1, c.Stats.Count(CategoryBehaviour, UnknownValue))
	assert.Equal(t, 1, c.Stats.Count(CategoryPriorClass, UnknownValue))
}

func TestStudentValueTrimsWhitespace(t *testing.T) {
	c := classWith(
		Student{ID: "1", FullName: "A", Academic: " High", Gender: "Female "},
		Student{ID: "2", FullName: "B", Academic: "High", Gender: "Female"},
	)

	assert.Equal(t, "High", c.Students[0].Value(CategoryAcademic))
	assert.Equal(t, 2, c.Stats.Count(CategoryAcademic, "High"))
	assert.Equal(t, 2, c.Stats.Count(CategoryGender, "Female"))
	assert.Equal(t, UnknownValue, Student{Behaviour: "  "}.Value(CategoryBehaviour))
}

func TestHasNameOnLiteralClassDoesNotMutate(t *testing.T) {
	c := &Class{Students: []Student{{ID: "1", FullName: "Ann Able"}}}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.HasName("Ann Able"))
			assert.False(t, c.HasName("Ben Baker"))
		}()
	}
	wg.Wait()
	assert.Nil(t, c.members)
}

func TestRecomputeStatsIsIdempotent(t *testing.T) {
	c := classWith(
		Student{ID: "1", FullName: "A", Academic: "High"},
		Student{ID: "2", FullName: "B", Academic: "Low"},
		Student{ID: "3", FullName: "C", Academic: "Low"},
	)
	incremental := c.Stats

	c.RecomputeStats()
	once := c.Stats
	c.RecomputeStats()

	assert.Equal(t, incremental, once)
	assert.Equal(t, once, c.Stats)
}

func TestMoveAcrossClasses(t *testing.T) {
	a := Student{ID: "a", FullName: "A", Academic: "High"}
	b := Student{ID: "b", FullName: "B", Academic: "Low"}
	c := Student{ID: "c", FullName: "C", Academic: "Low"}
	src := classWith(a, b)
	dst := classWith(c)

	require.NoError(t, Move(src, dst, "a", 0))
	assert.Equal(t, []string{"b"}, ids(src))
	assert.Equal(t, []string{"a", "c"}, ids(dst))
	assert.Equal(t, 0, src.Stats.Count(CategoryAcademic, "High"))
	assert.Equal(t, 1, dst.Stats.Count(CategoryAcademic, "High"))
	assert.False(t, src.HasName("A"))
	assert.True(t, dst.HasName("A"))
}

func TestMoveClampsIndex(t *testing.T) {
	src := classWith(Student{ID: "a", FullName: "A"}, Student{ID: "b", FullName: "B"})
	dst := classWith(Student{ID: "c", FullName: "C"})

	require.NoError(t, Move(src, dst, "a", 99))
	assert.Equal(t, []string{"c", "a"}, ids(dst))

	require.NoError(t, Move(src, dst, "b", -4))
	assert.Equal(t, []string{"b", "c", "a"}, ids(dst))
	assert.Empty(t, src.Students)
}

func TestMoveWithinSameClass(t *testing.T) {
	c := classWith(Student{ID: "a", FullName: "A"}, Student{ID: "b", FullName: "B"}, Student{ID: "c", FullName: "C"})
	before := StatisticsOf(c.Students)

	require.NoError(t, Move(c, c, "a", 2))
	assert.Equal(t, []string{"b", "c", "a"}, ids(c))
	assert.Equal(t, before, c.Stats)
}

func TestMoveMissingStudentLeavesClassesUntouched(t *testing.T) {
	src := classWith(Student{ID: "a", FullName: "A"})
	dst := classWith(Student{ID: "b", FullName: "B"})

	err := Move(src, dst, "zzz", 0)
	require.ErrorIs(t, err, ErrStudentNotFound)
	assert.Equal(t, []string{"a"}, ids(src))
	assert.Equal(t, []string{"b"}, ids(dst))
}

func TestGeneratedMoveResolvesGroups(t *testing.T) {
	g := &Generated{}
	g.Add("Straight Year 7", []*Class{classWith(Student{ID: "a", FullName: "A"}), NewClass()})
	g.Add("Composite 7/8", []*Class{classWith(Student{ID: "b", FullName: "B"})})
	g.Add("Empty", nil)
	require.Len(t, g.Groups, 2)

	require.NoError(t, g.Move(MoveRequest{
		SourceGroup: "Straight Year 7", SourceClass: 0,
		DestGroup: "Composite 7/8", DestClass: 0,
		StudentID: "a", Position: 1,
	}))
	dst, err := g.Class("Composite 7/8", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(dst))
	assert.Equal(t, 2, g.StudentCount())

	err = g.Move(MoveRequest{SourceGroup: "Nope", DestGroup: "Composite 7/8", StudentID: "a"})
	assert.ErrorIs(t, err, ErrGroupNotFound)
	err = g.Move(MoveRequest{SourceGroup: "Composite 7/8", DestGroup: "Straight Year 7", DestClass: 5, StudentID: "a"})
	assert.ErrorIs(t, err, ErrClassNotFound)
}

func TestGeneratedCloneIsIndependent(t *testing.T) {
	g := &Generated{}
	g.Add("Straight Year 7", []*Class{classWith(Student{ID: "a", FullName: "A"}), NewClass()})

	clone := g.Clone()
	require.NoError(t, clone.Move(MoveRequest{SourceGroup: "Straight Year 7", DestGroup: "Straight Year 7", DestClass: 1, StudentID: "a"}))

	orig, _ := g.Class("Straight Year 7", 0)
	assert.Equal(t, []string{"a"}, ids(orig))
}

func TestClassJSONRoundTripRebuildsIndex(t *testing.T) {
	c := classWith(Student{ID: "a", FullName: "A", Gender: "Male"})
	raw, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Class
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.HasName("A"))
	assert.Equal(t, c.Stats, decoded.Stats)
}
