package sync

import (
	"encoding/json"
	"sort"
)

type createdEntry struct {
	id    string
	items map[int]string
}

// CreatedIDs records the Salesforce IDs created during one run: a single ID
// per object type for order relationships, or one per line item position for
// item relationships. Values are immutable; the With methods return copies.
type CreatedIDs struct {
	entries map[string]createdEntry
}

func (c CreatedIDs) clone() CreatedIDs {
	entries := make(map[string]createdEntry, len(c.entries)+1)
	for k, v := range c.entries {
		entries[k] = v
	}
	return CreatedIDs{entries: entries}
}

// WithID returns a copy with id recorded as the single ID of objectType.
func (c CreatedIDs) WithID(objectType, id string) CreatedIDs {
	next := c.clone()
	next.entries[objectType] = createdEntry{id: id}
	return next
}

// WithItemID returns a copy with id recorded for line item position index.
func (c CreatedIDs) WithItemID(objectType string, index int, id string) CreatedIDs {
	next := c.clone()
	items := make(map[int]string, len(c.entries[objectType].items)+1)
	for k, v := range c.entries[objectType].items {
		items[k] = v
	}
	items[index] = id
	next.entries[objectType] = createdEntry{items: items}
	return next
}

// Lookup returns the ID to inject for a dependency on objectType. index is
// the line item position of the dependent record, or -1 for order records.
// Per-item IDs are matched by position; order records and the first item
// use the ID of the first line item.
func (c CreatedIDs) Lookup(objectType string, index int) (string, bool) {
	e, ok := c.entries[objectType]
	if !ok {
		return "", false
	}
	if e.items == nil {
		return e.id, true
	}
	if index < 0 {
		index = 0
	}
	id, ok := e.items[index]
	return id, ok
}

func (c CreatedIDs) Len() int {
	return len(c.entries)
}

// MarshalJSON renders single IDs as strings and per-item IDs as arrays in
// position order.
func (c CreatedIDs) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.entries))
	for name, e := range c.entries {
		if e.items == nil {
			out[name] = e.id
			continue
		}
		positions := make([]int, 0, len(e.items))
		for p := range e.items {
			positions = append(positions, p)
		}
		sort.Ints(positions)
		ids := make([]string, 0, len(positions))
		for _, p := range positions {
			ids = append(ids, e.items[p])
		}
		out[name] = ids
	}
	return json.Marshal(out)
}
