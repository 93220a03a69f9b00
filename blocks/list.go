package blocks

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ListValue holds a list block's cleaned items in order.
type ListValue []any

// ListBlock repeats one child block. Zero MinNum/MaxNum mean unbounded.
type ListBlock struct {
	Child     Block
	MinNum    int
	MaxNum    int
	BlockMeta Meta
}

func (b *ListBlock) Kind() Kind { return KindList }
func (b *ListBlock) Meta() Meta { return b.BlockMeta }

func (b *ListBlock) Clean(raw json.RawMessage) (any, error) {
	var items []json.RawMessage
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &items); err != nil {
			return ListValue{}, invalid("Expected a list.")
		}
	}
	out := make(ListValue, 0, len(items))
	var errs ValidationErrors
	for i, item := range items {
		v, err := b.Child.Clean(item)
		out = append(out, v)
		if errs, err = collect(errs, err, strconv.Itoa(i)); err != nil {
			return out, fmt.Errorf("blocks: clean item %d: %w", i, err)
		}
	}
	if b.MinNum > 0 && len(out) < b.MinNum {
		errs = append(errs, invalid(msgMinItems, b.MinNum)...)
	}
	if b.MaxNum > 0 && len(out) > b.MaxNum {
		errs = append(errs, invalid(msgMaxItems, b.MaxNum)...)
	}
	return out, errOrNil(errs)
}
