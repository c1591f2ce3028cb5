package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// TypeCount is a single equipment-type bucket of the distribution.
type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Distribution maps equipment type to count and remembers the order in which
// the backend enumerated the types. Go maps do not keep insertion order, so the
// JSON object is decoded token by token.
type Distribution struct {
	entries []TypeCount
}

// NewDistribution builds a distribution from entries in enumeration order.
func NewDistribution(entries ...TypeCount) Distribution {
	out := make([]TypeCount, len(entries))
	copy(out, entries)
	return Distribution{entries: out}
}

// Len returns the number of distinct equipment types.
func (d Distribution) Len() int { return len(d.entries) }

// Entries returns a copy of the buckets in enumeration order.
func (d Distribution) Entries() []TypeCount {
	out := make([]TypeCount, len(d.entries))
	copy(out, d.entries)
	return out
}

// Count returns the count for an equipment type.
func (d Distribution) Count(typ string) (int64, bool) {
	for _, e := range d.entries {
		if e.Type == typ {
			return e.Count, true
		}
	}
	return 0, false
}

// UnmarshalJSON decodes a JSON object preserving key order. null decodes to an
// empty distribution.
func (d *Distribution) UnmarshalJSON(data []byte) error {
	d.entries = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("equipment_distribution: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("equipment_distribution: unexpected key %v", keyTok)
		}

		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("equipment_distribution[%q]: %w", key, err)
		}
		count, err := numberToCount(n)
		if err != nil {
			return fmt.Errorf("equipment_distribution[%q]: %w", key, err)
		}
		d.entries = append(d.entries, TypeCount{Type: key, Count: count})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON writes the distribution as a JSON object in enumeration order.
func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d", e.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EncodeMsgpack writes the distribution as a msgpack map in enumeration order.
func (d Distribution) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(d.entries)); err != nil {
		return err
	}
	for _, e := range d.entries {
		if err := enc.EncodeString(e.Type); err != nil {
			return err
		}
		if err := enc.EncodeInt(e.Count); err != nil {
			return err
		}
	}
	return nil
}

func numberToCount(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("count is not finite")
	}
	return int64(f), nil
}
