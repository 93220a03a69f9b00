package blocks

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// StreamChild is one typed block inside a stream.
type StreamChild struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
	ID    string `json:"id,omitempty"`

	block Block
}

// Block returns the child's definition. It is nil until the stream value
// has been cleaned.
func (c StreamChild) Block() Block {
	return c.block
}

// StreamValue is the ordered content of a stream field.
type StreamValue []StreamChild

// Count returns how many children have the given type.
func (v StreamValue) Count(typ string) int {
	n := 0
	for _, c := range v {
		if c.Type == typ {
			n++
		}
	}
	return n
}

// First returns the first child of the given type.
func (v StreamValue) First(typ string) (StreamChild, bool) {
	for _, c := range v {
		if c.Type == typ {
			return c, true
		}
	}
	return StreamChild{}, false
}

// Count bounds how often one child type may appear in a stream. Zero means
// unbounded.
type Count struct {
	Min int
	Max int
}

// StreamBlock is a free-form sequence of typed child blocks. Zero
// MinNum/MaxNum mean unbounded.
type StreamBlock struct {
	Children    []Child
	MinNum      int
	MaxNum      int
	BlockCounts map[string]Count
	BlockMeta   Meta
}

func (b *StreamBlock) Kind() Kind { return KindStream }
func (b *StreamBlock) Meta() Meta { return b.BlockMeta }

type rawStreamChild struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
	ID    string          `json:"id"`
}

// Clean decodes a JSON array of {type, value, id} objects. Children without
// an id get a fresh one.
func (b *StreamBlock) Clean(raw json.RawMessage) (any, error) {
	var items []rawStreamChild
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return StreamValue{}, invalid("Expected a list of blocks.")
		}
	}
	out := make(StreamValue, 0, len(items))
	var errs ValidationErrors
	for i, item := range items {
		child, ok := b.Child(item.Type)
		if !ok {
			errs = append(errs, invalid("Unknown block type %q.", item.Type).Prefix(strconv.Itoa(i))...)
			continue
		}
		v, err := child.Clean(item.Value)
		if errs, err = collect(errs, err, strconv.Itoa(i)); err != nil {
			return out, fmt.Errorf("blocks: clean %s block %d: %w", item.Type, i, err)
		}
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, StreamChild{Type: item.Type, Value: v, ID: id, block: child})
	}
	errs = append(errs, b.checkCounts(out)...)
	return out, errOrNil(errs)
}

// CleanValue cleans a StreamValue built in Go code.
func (b *StreamBlock) CleanValue(v StreamValue) (StreamValue, error) {
	raw, err := Raw(v)
	if err != nil {
		return nil, err
	}
	cleaned, err := b.Clean(raw)
	sv, _ := cleaned.(StreamValue)
	return sv, err
}

func (b *StreamBlock) checkCounts(v StreamValue) ValidationErrors {
	var errs ValidationErrors
	if b.MinNum > 0 && len(v) < b.MinNum {
		errs = append(errs, invalid(msgMinItems, b.MinNum)...)
	}
	if b.MaxNum > 0 && len(v) > b.MaxNum {
		errs = append(errs, invalid(msgMaxItems, b.MaxNum)...)
	}
	for _, c := range b.Children {
		limits, ok := b.BlockCounts[c.Name]
		if !ok {
			continue
		}
		n := v.Count(c.Name)
		if limits.Min > 0 && n < limits.Min {
			errs = append(errs, invalid("%s: "+msgMinItems, c.Label(), limits.Min)...)
		}
		if limits.Max > 0 && n > limits.Max {
			errs = append(errs, invalid("%s: "+msgMaxItems, c.Label(), limits.Max)...)
		}
	}
	return errs
}

// Child returns the definition registered under name.
func (b *StreamBlock) Child(name string) (Block, bool) {
	for _, c := range b.Children {
		if c.Name == name {
			return c.Block, true
		}
	}
	return nil, false
}
