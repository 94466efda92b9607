package rewards

import (
	"bytes"
	"encoding/json"
	"iter"
	"slices"
)

// MonthlyBucket aggregates the valid transactions of one month.
type MonthlyBucket struct {
	Points           int     `json:"points"`
	TransactionCount int     `json:"transactionCount"`
	TotalAmount      float64 `json:"totalAmount"`
}

// MonthlyBreakdown maps month keys to buckets, remembering the order in
// which keys were first seen.
type MonthlyBreakdown struct {
	keys    []string
	buckets map[string]*MonthlyBucket
}

func newMonthlyBreakdown() *MonthlyBreakdown {
	return &MonthlyBreakdown{buckets: make(map[string]*MonthlyBucket)}
}

func (m *MonthlyBreakdown) add(key string, points int, amount float64) {
	b, ok := m.buckets[key]
	if !ok {
		b = &MonthlyBucket{}
		m.buckets[key] = b
		m.keys = append(m.keys, key)
	}
	b.Points += points
	b.TransactionCount++
	b.TotalAmount += amount
}

// Len returns the number of months.
func (m *MonthlyBreakdown) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the bucket for key.
func (m *MonthlyBreakdown) Get(key string) (MonthlyBucket, bool) {
	if m == nil {
		return MonthlyBucket{}, false
	}
	b, ok := m.buckets[key]
	if !ok {
		return MonthlyBucket{}, false
	}
	return *b, true
}

// Keys returns the month keys in first-occurrence order.
func (m *MonthlyBreakdown) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// SortedKeys returns the month keys in chronological order.
func (m *MonthlyBreakdown) SortedKeys() []string {
	keys := m.Keys()
	slices.Sort(keys)
	return keys
}

// All iterates over the buckets in first-occurrence order.
func (m *MonthlyBreakdown) All() iter.Seq2[string, MonthlyBucket] {
	return func(yield func(string, MonthlyBucket) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, *m.buckets[k]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the breakdown as an object whose members follow
// first-occurrence order.
func (m *MonthlyBreakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.buckets[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
