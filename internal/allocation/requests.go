package allocation

import "strings"

// RequestKind distinguishes pairing from separation requests.
type RequestKind string

const (
	RequestPair     RequestKind = "pair"
	RequestSeparate RequestKind = "separate"
)

// Request is an unordered pair of full names.
type Request struct {
	Kind     RequestKind `json:"kind"`
	Students [2]string   `json:"students"`
}

// Involves reports whether name is one of the two students.
func (r Request) Involves(name string) bool {
	return r.Students[0] == name || r.Students[1] == name
}

// Other returns the partner of name within the request.
func (r Request) Other(name string) string {
	if r.Students[0] == name {
		return r.Students[1]
	}
	return r.Students[0]
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// Ledger is the de-duplicated set of pairing and separation requests.
type Ledger struct {
	Pairs       []Request `json:"pairs"`
	Separations []Request `json:"separations"`

	seen      map[RequestKind]map[string]struct{}
	separated map[string][]string
}

// NewLedger builds a ledger from already-resolved requests, dropping duplicates
// and self references.
func NewLedger(requests ...Request) Ledger {
	var l Ledger
	for _, r := range requests {
		l.add(r.Kind, r.Students[0], r.Students[1])
	}
	return l
}

func (l *Ledger) add(kind RequestKind, a, b string) bool {
	if a == b {
		return false
	}
	if l.seen == nil {
		l.seen = map[RequestKind]map[string]struct{}{}
	}
	if l.seen[kind] == nil {
		l.seen[kind] = map[string]struct{}{}
	}
	key := pairKey(a, b)
	if _, ok := l.seen[kind][key]; ok {
		return false
	}
	l.seen[kind][key] = struct{}{}

	req := Request{Kind: kind, Students: [2]string{a, b}}
	switch kind {
	case RequestPair:
		l.Pairs = append(l.Pairs, req)
	case RequestSeparate:
		l.Separations = append(l.Separations, req)
		if l.separated == nil {
			l.separated = map[string][]string{}
		}
		l.separated[a] = append(l.separated[a], b)
		l.separated[b] = append(l.separated[b], a)
	}
	return true
}

// SeparatedFrom returns every name that name must not share a class with.
func (l Ledger) SeparatedFrom(name string) []string {
	return l.indexed().separated[name]
}

// indexed rebuilds the lookup index for ledgers decoded from JSON.
func (l Ledger) indexed() Ledger {
	if l.seen != nil || len(l.Pairs)+len(l.Separations) == 0 {
		return l
	}
	return NewLedger(append(append([]Request{}, l.Pairs...), l.Separations...)...)
}

// Separated reports whether a and b carry a separation request.
func (l Ledger) Separated(a, b string) bool {
	for _, other := range l.SeparatedFrom(a) {
		if other == b {
			return true
		}
	}
	return false
}

// ResolveRequests parses each student's free-text request fields into a ledger.
// Fragments are split on commas, ampersands and semicolons and matched against
// full names: exact (case-insensitive) first, then the first student in
// population order whose full name starts with the fragment. Unmatched
// fragments and self references are dropped.
func ResolveRequests(students []Student) Ledger {
	ledger := Ledger{Pairs: []Request{}, Separations: []Request{}}
	for _, s := range students {
		for _, target := range resolveNames(s, s.PairRequest, students) {
			ledger.add(RequestPair, s.FullName, target)
		}
		for _, target := range resolveNames(s, s.SeparateRequest, students) {
			ledger.add(RequestSeparate, s.FullName, target)
		}
	}
	return ledger
}

func resolveNames(requester Student, raw string, students []Student) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var names []string
	for _, fragment := range splitRequest(raw) {
		target, ok := findStudent(fragment, students)
		if !ok {
			continue
		}
		if target.ID == requester.ID || target.FullName == requester.FullName {
			continue
		}
		names = append(names, target.FullName)
	}
	return names
}

func splitRequest(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '&' || r == ';'
	})
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func findStudent(fragment string, students []Student) (Student, bool) {
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return Student{}, false
	}
	for _, s := range students {
		if strings.ToLower(s.FullName) == needle {
			return s, true
		}
	}
	for _, s := range students {
		if strings.HasPrefix(strings.ToLower(s.FullName), needle) {
			return s, true
		}
	}
	return Student{}, false
}
