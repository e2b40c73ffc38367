// Package roster turns uploaded spreadsheets and pasted text into student records.
package roster

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/noah-isme/class-builder-api/internal/allocation"
)

// Column headers accepted in uploaded rosters, in template order.
const (
	ColumnClass           = "Class"
	ColumnSurname         = "Surname"
	ColumnFirstName       = "First Name"
	ColumnGender          = "Gender"
	ColumnAcademic        = "Academic"
	ColumnBehaviour       = "Behaviour"
	ColumnRequestPair     = "Request: Pair"
	ColumnRequestSeparate = "Request: Separate"
)

// Columns lists the template columns in order. Headerless text is read in this order.
var Columns = []string{
	ColumnClass,
	ColumnSurname,
	ColumnFirstName,
	ColumnGender,
	ColumnAcademic,
	ColumnBehaviour,
	ColumnRequestPair,
	ColumnRequestSeparate,
}

// TemplateRows are the example rows shipped with the CSV template.
var TemplateRows = [][]string{
	{"7A", "Smith", "Jane", "Female", "High", "Good", "John Doe", "Tom Lee"},
	{"7B", "Doe", "John", "Male", "2", "2", "Jane S", ""},
	{"7A", "Brown", "Charlie", "Male", "Low", "Needs Support", "", ""},
}

const (
	defaultAcademic  = "Average"
	defaultBehaviour = "Good"
)

var (
	ErrEmptyRoster      = errors.New("roster contains no student rows")
	ErrMissingHeader    = errors.New("roster header row is missing required columns")
	ErrUnsupportedInput = errors.New("unsupported roster format")
)

// Fields is one roster row keyed by template column.
type Fields struct {
	ID              string
	Class           string
	Surname         string
	FirstName       string
	Gender          string
	Academic        string
	Behaviour       string
	PairRequest     string
	SeparateRequest string
}

func (f Fields) blank() bool {
	return strings.TrimSpace(f.Class+f.Surname+f.FirstName+f.Gender+f.Academic+f.Behaviour+f.PairRequest+f.SeparateRequest) == ""
}

// IDGenerator produces identifiers for rows without one.
type IDGenerator func() string

// Builder converts roster rows into students.
type Builder struct {
	newID IDGenerator
}

// NewBuilder returns a Builder. A nil generator falls back to random UUIDs.
func NewBuilder(gen IDGenerator) *Builder {
	if gen == nil {
		gen = func() string { return uuid.NewString() }
	}
	return &Builder{newID: gen}
}

// Student normalises one row. index is the zero-based position used for the
// placeholder name when the row has neither first name nor surname.
func (b *Builder) Student(index int, f Fields) allocation.Student {
	first := strings.TrimSpace(f.FirstName)
	surname := strings.TrimSpace(f.Surname)
	fullName := strings.TrimSpace(first + " " + surname)
	if fullName == "" {
		fullName = fmt.Sprintf("Student %d", index+1)
	}

	id := strings.TrimSpace(f.ID)
	if id == "" {
		id = b.newID()
	}

	return allocation.Student{
		ID:              id,
		FirstName:       first,
		Surname:         surname,
		FullName:        fullName,
		PriorClass:      orDefault(f.Class, allocation.UnknownValue),
		Gender:          orDefault(f.Gender, allocation.UnknownValue),
		Academic:        NormalizeLevel(orDefault(f.Academic, defaultAcademic)),
		Behaviour:       NormalizeLevel(orDefault(f.Behaviour, defaultBehaviour)),
		PairRequest:     strings.TrimSpace(f.PairRequest),
		SeparateRequest: strings.TrimSpace(f.SeparateRequest),
	}
}

// Students converts rows, skipping blank ones.
func (b *Builder) Students(rows []Fields) []allocation.Student {
	out := make([]allocation.Student, 0, len(rows))
	for _, row := range rows {
		if row.blank() {
			continue
		}
		out = append(out, b.Student(len(out), row))
	}
	return out
}

// NormalizeLevel maps free-form ranking input onto Low, Average and High.
// Unrecognised values are kept with their first letter capitalised.
func NormalizeLevel(raw string) string {
	val := strings.ToLower(strings.TrimSpace(raw))
	switch val {
	case "low", "1", "below":
		return "Low"
	case "at", "2", "medium", "average":
		return "Average"
	case "above", "3", "high":
		return "High"
	case "":
		return allocation.UnknownValue
	}
	runes := []rune(val)
	return string(unicode.ToUpper(runes[0])) + string(runes[1:])
}

func orDefault(v, fallback string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return fallback
}

// fromRecord maps a record onto Fields using a header index.
func fromRecord(record []string, index map[string]int) Fields {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	return Fields{
		Class:           get(ColumnClass),
		Surname:         get(ColumnSurname),
		FirstName:       get(ColumnFirstName),
		Gender:          get(ColumnGender),
		Academic:        get(ColumnAcademic),
		Behaviour:       get(ColumnBehaviour),
		PairRequest:     get(ColumnRequestPair),
		SeparateRequest: get(ColumnRequestSeparate),
	}
}

// headerIndex matches header cells to template columns case-insensitively.
// It reports false when the row names neither a Class nor a Surname column.
func headerIndex(header []string) (map[string]int, bool) {
	index := make(map[string]int, len(Columns))
	for i, cell := range header {
		name := strings.TrimSpace(cell)
		for _, col := range Columns {
			if strings.EqualFold(name, col) {
				index[col] = i
			}
		}
	}
	_, hasClass := index[ColumnClass]
	_, hasSurname := index[ColumnSurname]
	return index, hasClass || hasSurname
}

func positionalIndex() map[string]int {
	index := make(map[string]int, len(Columns))
	for i, col := range Columns {
		index[col] = i
	}
	return index
}

// fromRecords converts a header row plus data rows. When requireHeader is
// false and the first row is not a header, records are read positionally.
func fromRecords(records [][]string, requireHeader bool) ([]Fields, error) {
	if len(records) == 0 {
		return nil, ErrEmptyRoster
	}
	index, ok := headerIndex(records[0])
	data := records[1:]
	if !ok {
		if requireHeader {
			return nil, ErrMissingHeader
		}
		index = positionalIndex()
		data = records
	}

	rows := make([]Fields, 0, len(data))
	for _, rec := range data {
		rows = append(rows, fromRecord(rec, index))
	}
	return rows, nil
}
