package blocks

import (
	"encoding/json"
	"fmt"
)

// StructValue holds a struct block's cleaned child values by name.
type StructValue map[string]any

// StructBlock groups a fixed set of named child blocks.
type StructBlock struct {
	Children  []Child
	BlockMeta Meta
}

func (b *StructBlock) Kind() Kind { return KindStruct }
func (b *StructBlock) Meta() Meta { return b.BlockMeta }

func (b *StructBlock) Clean(raw json.RawMessage) (any, error) {
	fields := map[string]json.RawMessage{}
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return StructValue{}, invalid("Expected an object.")
		}
	}
	out := make(StructValue, len(b.Children))
	var errs ValidationErrors
	for _, c := range b.Children {
		v, err := c.Block.Clean(fields[c.Name])
		out[c.Name] = v
		if errs, err = collect(errs, err, c.Name); err != nil {
			return out, fmt.Errorf("blocks: clean %s: %w", c.Name, err)
		}
	}
	return out, errOrNil(errs)
}

// Child returns the definition of the named child block.
func (b *StructBlock) Child(name string) (Block, bool) {
	for _, c := range b.Children {
		if c.Name == name {
			return c.Block, true
		}
	}
	return nil, false
}
