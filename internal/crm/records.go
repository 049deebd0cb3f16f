package crm

import (
	"fmt"
	"sort"
	"strconv"
)

// Record is a flattened remote case record. ID is the business-visible
// identifier callers look records up by; UUID is the remote system's stable
// identifier, required for update and delete calls.
type Record struct {
	ID         string
	UUID       string
	Attributes map[string]interface{}
}

// Attr returns a named attribute value, nil if absent.
func (r *Record) Attr(name string) interface{} {
	if r.Attributes == nil {
		return nil
	}
	return r.Attributes[name]
}

// RecordSet is an ordered mapping from business id to record. Insertion
// order is preserved so sort and pagination results are deterministic;
// a plain map cannot guarantee that.
type RecordSet struct {
	order []string
	index map[string]*Record
}

// NewRecordSet creates an empty record set.
func NewRecordSet() *RecordSet {
	return &RecordSet{index: make(map[string]*Record)}
}

// Add appends a record, keyed by its business id. Re-adding an existing id
// replaces the record in place without changing its position.
func (s *RecordSet) Add(record *Record) {
	if _, exists := s.index[record.ID]; !exists {
		s.order = append(s.order, record.ID)
	}
	s.index[record.ID] = record
}

// Get returns the record for an id, nil if absent.
func (s *RecordSet) Get(id string) *Record {
	return s.index[id]
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	return len(s.order)
}

// IDs returns the ids in order.
func (s *RecordSet) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Records returns the records in order.
func (s *RecordSet) Records() []*Record {
	records := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.index[id])
	}
	return records
}

// Filter returns a new set holding only the requested ids, in the order
// given, silently omitting ids that are not present.
func (s *RecordSet) Filter(ids []string) *RecordSet {
	out := NewRecordSet()
	for _, id := range ids {
		if record, ok := s.index[id]; ok {
			out.Add(record)
		}
	}
	return out
}

// Slice returns the records in positions [start, start+length), preserving
// keys. A negative or zero length means everything from start onward.
func (s *RecordSet) Slice(start, length int) *RecordSet {
	if start < 0 {
		start = 0
	}
	if start > len(s.order) {
		start = len(s.order)
	}
	end := len(s.order)
	if length > 0 && start+length < end {
		end = start + length
	}

	out := NewRecordSet()
	for _, id := range s.order[start:end] {
		out.Add(s.index[id])
	}
	return out
}

// SortBy returns a new set ordered by the named attribute. Comparison is
// numeric when numeric is true (unparseable values coerce to zero), else
// lexicographic. desc reverses the order. The sort is stable, so records
// with equal keys keep their relative order.
func (s *RecordSet) SortBy(field string, desc, numeric bool) *RecordSet {
	records := s.Records()

	sort.SliceStable(records, func(i, j int) bool {
		var less bool
		if numeric {
			less = attrFloat(records[i], field) < attrFloat(records[j], field)
		} else {
			less = attrString(records[i], field) < attrString(records[j], field)
		}
		if desc {
			return !less && !attrEqual(records[i], records[j], field, numeric)
		}
		return less
	})

	out := NewRecordSet()
	for _, record := range records {
		out.Add(record)
	}
	return out
}

func attrEqual(a, b *Record, field string, numeric bool) bool {
	if numeric {
		return attrFloat(a, field) == attrFloat(b, field)
	}
	return attrString(a, field) == attrString(b, field)
}

func attrString(r *Record, field string) string {
	if field == "id" {
		return r.ID
	}
	value := r.Attr(field)
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func attrFloat(r *Record, field string) float64 {
	value := r.Attr(field)
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
