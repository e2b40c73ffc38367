package allocation

import (
	"math"
	"strings"
)

// YearPool is the straight-class candidate set for one year level.
type YearPool struct {
	Year     string    `json:"year"`
	Students []Student `json:"students"`
	Classes  int       `json:"classes"`
}

// Plan describes how a population is split across balancing runs.
type Plan struct {
	YearLevels       []string   `json:"yearLevels"`
	StraightClasses  int        `json:"straightClasses"`
	CompositeClasses int        `json:"compositeClasses"`
	Eligible         []Student  `json:"-"`
	Years            []YearPool `json:"years"`
	// Degenerate is set when the configuration leaves nothing to generate.
	Degenerate bool `json:"degenerate"`
}

// AllocatedClasses returns the straight classes handed out plus the composite count.
func (p Plan) AllocatedClasses() int {
	total := p.CompositeClasses
	for _, y := range p.Years {
		total += y.Classes
	}
	return total
}

// CompositePool returns the eligible students not placed by any straight run,
// in population order.
func (p Plan) CompositePool(placed map[string]struct{}) []Student {
	pool := make([]Student, 0)
	for _, s := range p.Eligible {
		if _, ok := placed[s.ID]; !ok {
			pool = append(pool, s)
		}
	}
	return pool
}

// StraightGroupName names the group produced for a year level.
func StraightGroupName(year string) string {
	return "Straight Year " + year
}

// CompositeGroupName names the group produced from the leftover pool.
func CompositeGroupName(yearLevels []string) string {
	return "Composite " + strings.Join(yearLevels, "/")
}

// Partition splits students into per-year pools and apportions the straight
// class count across them in proportion to pool size. The last non-empty year
// absorbs the rounding remainder. Invalid configurations yield a degenerate
// plan rather than an error.
func Partition(students []Student, yearLevels []string, totalClasses, compositeClasses int) Plan {
	years := normalizeYears(yearLevels)
	if totalClasses <= 0 || compositeClasses < 0 || compositeClasses > totalClasses || len(years) == 0 {
		return Plan{YearLevels: years, Degenerate: true}
	}

	plan := Plan{
		YearLevels:       years,
		StraightClasses:  totalClasses - compositeClasses,
		CompositeClasses: compositeClasses,
	}

	pools := make([][]Student, len(years))
	for _, s := range students {
		if !eligible(s.PriorClass, years) {
			continue
		}
		plan.Eligible = append(plan.Eligible, s)
		if idx := yearIndex(s.PriorClass, years); idx >= 0 {
			pools[idx] = append(pools[idx], s)
		}
	}

	totalStraight := 0
	last := -1
	for i, pool := range pools {
		totalStraight += len(pool)
		if len(pool) > 0 {
			last = i
		}
	}

	allocated := 0
	plan.Years = make([]YearPool, len(years))
	for i, year := range years {
		yp := YearPool{Year: year, Students: pools[i]}
		switch {
		case len(pools[i]) == 0:
			yp.Classes = 0
		case i == last:
			yp.Classes = plan.StraightClasses - allocated
		default:
			share := float64(len(pools[i])) / float64(totalStraight) * float64(plan.StraightClasses)
			yp.Classes = int(math.Round(share))
			allocated += yp.Classes
		}
		if yp.Classes < 0 {
			yp.Classes = 0
		}
		plan.Years[i] = yp
	}

	return plan
}

func normalizeYears(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	years := make([]string, 0, len(raw))
	for _, y := range raw {
		y = strings.TrimSpace(y)
		if y == "" {
			continue
		}
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	return years
}

// eligible accepts labels whose first digit run is a configured year, or that
// start with a configured year containing no digits.
func eligible(label string, years []string) bool {
	digits := firstDigitRun(label)
	for _, y := range years {
		if digits != "" && digits == y {
			return true
		}
		if firstDigitRun(y) == "" && strings.HasPrefix(strings.ToUpper(label), strings.ToUpper(y)) {
			return true
		}
	}
	return false
}

// yearIndex picks the longest year label prefixing the class label.
func yearIndex(label string, years []string) int {
	best := -1
	upper := strings.ToUpper(label)
	for i, y := range years {
		if !strings.HasPrefix(upper, strings.ToUpper(y)) {
			continue
		}
		if best < 0 || len(y) > len(years[best]) {
			best = i
		}
	}
	return best
}

func firstDigitRun(s string) string {
	start := strings.IndexAny(s, "0123456789")
	if start < 0 {
		return ""
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[start:end]
}
