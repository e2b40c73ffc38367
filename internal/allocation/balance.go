package allocation

import "math"

// Weights scales each category's imbalance cost and the class-size tie breaker.
type Weights struct {
	Academic   float64 `json:"academic"`
	Behaviour  float64 `json:"behaviour"`
	Gender     float64 `json:"gender"`
	PriorClass float64 `json:"priorClass"`
	Size       float64 `json:"size"`
}

// DefaultWeights favours academic and behaviour balance over gender and prior class.
func DefaultWeights() Weights {
	return Weights{Academic: 3, Behaviour: 3, Gender: 2, PriorClass: 1, Size: 0.1}
}

func (w Weights) category(c Category) float64 {
	switch c {
	case CategoryAcademic:
		return w.Academic
	case CategoryBehaviour:
		return w.Behaviour
	case CategoryGender:
		return w.Gender
	case CategoryPriorClass:
		return w.PriorClass
	default:
		return 0
	}
}

// Options tunes a balancing run.
type Options struct {
	// MaxClassSize is the hard capacity. Zero or less means unbounded.
	MaxClassSize int
	// MinClassSize is advisory and only reported back.
	MinClassSize int
	Weights      Weights
}

// Permuter is the source of randomness for shuffles. *rand.Rand satisfies it.
type Permuter interface {
	Shuffle(n int, swap func(i, j int))
}

// FallbackEvent records a student placed while ignoring separation requests.
type FallbackEvent struct {
	StudentID     string   `json:"studentId"`
	StudentName   string   `json:"studentName"`
	ClassIndex    int      `json:"classIndex"`
	ConflictsWith []string `json:"conflictsWith"`
}

// Result is the outcome of one balancing run.
type Result struct {
	Classes []*Class `json:"classes"`
	// Placed lists student ids in placement order.
	Placed []string `json:"placed"`
	// Unplaced lists students that found no class with room.
	Unplaced          []Student       `json:"unplaced"`
	Fallbacks         []FallbackEvent `json:"fallbacks"`
	UnseededPairs     []Request       `json:"unseededPairs"`
	UndersizedClasses []int           `json:"undersizedClasses"`
}

// PlacedSet returns the placed ids as a set.
func (r Result) PlacedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Placed))
	for _, id := range r.Placed {
		set[id] = struct{}{}
	}
	return set
}

type balancer struct {
	classes []*Class
	totals  Statistics
	ledger  Ledger
	opts    Options
	rng     Permuter
	result  Result
	placed  map[string]struct{}
}

// Balance assigns pool members to numClasses classes, seeding requested pairs
// first and then placing each remaining student, in random order, into the
// class with the lowest marginal imbalance cost. Full classes and classes
// holding a separated partner are never chosen unless no other class has room.
func Balance(pool []Student, numClasses int, ledger Ledger, opts Options, rng Permuter) Result {
	if numClasses <= 0 || len(pool) == 0 {
		return Result{Classes: []*Class{}, Placed: []string{}}
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	b := &balancer{
		classes: make([]*Class, numClasses),
		totals:  StatisticsOf(pool),
		ledger:  ledger.indexed(),
		opts:    opts,
		rng:     rng,
		placed:  make(map[string]struct{}, len(pool)),
		result:  Result{Placed: make([]string, 0, len(pool))},
	}
	for i := range b.classes {
		b.classes[i] = NewClass()
	}

	b.seedPairs(pool)

	remaining := make([]Student, 0, len(pool))
	for _, s := range pool {
		if _, ok := b.placed[s.ID]; !ok {
			remaining = append(remaining, s)
		}
	}
	rng.Shuffle(len(remaining), func(i, j int) {
		remaining[i], remaining[j] = remaining[j], remaining[i]
	})

	order := make([]int, numClasses)
	for _, s := range remaining {
		b.place(s, order)
	}

	if opts.MinClassSize > 0 {
		for i, c := range b.classes {
			if c.Size() < opts.MinClassSize {
				b.result.UndersizedClasses = append(b.result.UndersizedClasses, i)
			}
		}
	}

	b.result.Classes = b.classes
	return b.result
}

func (b *balancer) seedPairs(pool []Student) {
	for _, req := range b.ledger.Pairs {
		first, ok1 := b.unplaced(pool, req.Students[0])
		second, ok2 := b.unplaced(pool, req.Students[1])
		if !ok1 || !ok2 {
			continue
		}
		target := b.smallestCompatible(first, second)
		if target == nil || !b.hasRoom(target, 2) {
			b.result.UnseededPairs = append(b.result.UnseededPairs, req)
			continue
		}
		b.commit(target, first)
		b.commit(target, second)
	}
}

// unplaced finds the first pool member with name that has not been placed yet.
func (b *balancer) unplaced(pool []Student, name string) (Student, bool) {
	for _, s := range pool {
		if s.FullName != name {
			continue
		}
		if _, done := b.placed[s.ID]; !done {
			return s, true
		}
	}
	return Student{}, false
}

// smallestCompatible returns the smallest class (lowest index on ties) that
// holds no separation partner of either student.
func (b *balancer) smallestCompatible(first, second Student) *Class {
	if b.ledger.Separated(first.FullName, second.FullName) {
		return nil
	}
	var best *Class
	for _, c := range b.classes {
		if b.conflicts(first, c) != nil || b.conflicts(second, c) != nil {
			continue
		}
		if best == nil || c.Size() < best.Size() {
			best = c
		}
	}
	return best
}

func (b *balancer) place(s Student, order []int) {
	for i := range order {
		order[i] = i
	}
	b.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	var best *Class
	bestCost := math.Inf(1)
	for _, idx := range order {
		cost := b.cost(s, b.classes[idx])
		if cost < bestCost {
			bestCost = cost
			best = b.classes[idx]
		}
	}
	if best != nil {
		b.commit(best, s)
		return
	}

	for idx, c := range b.classes {
		if !b.hasRoom(c, 1) {
			continue
		}
		b.result.Fallbacks = append(b.result.Fallbacks, FallbackEvent{
			StudentID:     s.ID,
			StudentName:   s.FullName,
			ClassIndex:    idx,
			ConflictsWith: b.conflicts(s, c),
		})
		b.commit(c, s)
		return
	}

	b.result.Unplaced = append(b.result.Unplaced, s)
}

// cost returns the weighted marginal squared deviation of adding s to c, or
// +Inf when c is full or holds a separated partner.
func (b *balancer) cost(s Student, c *Class) float64 {
	if !b.hasRoom(c, 1) || b.conflicts(s, c) != nil {
		return math.Inf(1)
	}
	numClasses := float64(len(b.classes))
	total := 0.0
	for _, cat := range Categories {
		value := s.Value(cat)
		ideal := float64(b.totals.Count(cat, value)) / numClasses
		current := float64(c.Stats.Count(cat, value))
		delta := (current+1-ideal)*(current+1-ideal) - (current-ideal)*(current-ideal)
		total += b.opts.Weights.category(cat) * delta
	}
	return total + b.opts.Weights.Size*float64(c.Size())
}

func (b *balancer) conflicts(s Student, c *Class) []string {
	var names []string
	for _, other := range b.ledger.SeparatedFrom(s.FullName) {
		if c.HasName(other) {
			names = append(names, other)
		}
	}
	return names
}

func (b *balancer) hasRoom(c *Class, n int) bool {
	return b.opts.MaxClassSize <= 0 || c.Size()+n <= b.opts.MaxClassSize
}

func (b *balancer) commit(c *Class, s Student) {
	c.Add(s)
	b.placed[s.ID] = struct{}{}
	b.result.Placed = append(b.result.Placed, s.ID)
}
