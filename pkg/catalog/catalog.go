// Package catalog holds the read-only registry of veils: the named
// technique definitions that work records cite through their sector tag.
//
// The registry is a fixed seed table compiled into the binary. Lookups
// are served from indexes built once at construction, so a Catalog is
// safe for concurrent readers without locking.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Veil is one catalog entry. Opcode is derived from the ID and is stable
// across releases; everything else is descriptive.
type Veil struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Tier        string   `json:"tier"`
	Category    string   `json:"category"`
	Opcode      string   `json:"opcode"`
	Description string   `json:"description"`
	Equation    string   `json:"equation"`
	Tags        []string `json:"tags,omitempty"`
}

// Tier slugs used by the registry.
const (
	TierClassical  = "classical_systems"
	TierMLAI       = "ml_ai"
	TierSignal     = "signal_processing"
	TierRobotics   = "robotics"
	TierVision     = "computer_vision"
	TierCrypto     = "crypto_blockchain"
	TierFirstCanon = "first_canon"
	TierQuantum    = "quantum"
)

// Opcode derives the wire opcode for a veil ID.
func Opcode(id int) string {
	return fmt.Sprintf("0x%04X", id+0x100)
}

// ErrUnknownVeil reports a lookup miss.
type ErrUnknownVeil struct {
	ID int
}

func (e *ErrUnknownVeil) Error() string {
	return fmt.Sprintf("catalog: unknown veil %d", e.ID)
}

// Catalog is the indexed registry.
type Catalog struct {
	byID     map[int]*Veil
	byOpcode map[string]*Veil
	ordered  []*Veil
}

// New builds a catalog over the given entries. IDs and opcodes must be
// unique; opcodes are filled in from the ID when blank.
func New(veils []Veil) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[int]*Veil, len(veils)),
		byOpcode: make(map[string]*Veil, len(veils)),
		ordered:  make([]*Veil, 0, len(veils)),
	}
	for i := range veils {
		v := veils[i]
		if v.ID <= 0 {
			return nil, fmt.Errorf("catalog: veil ID must be positive, got %d", v.ID)
		}
		if v.Opcode == "" {
			v.Opcode = Opcode(v.ID)
		}
		if _, dup := c.byID[v.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate veil ID %d", v.ID)
		}
		if _, dup := c.byOpcode[v.Opcode]; dup {
			return nil, fmt.Errorf("catalog: duplicate opcode %s", v.Opcode)
		}
		entry := &v
		c.byID[v.ID] = entry
		c.byOpcode[v.Opcode] = entry
		c.ordered = append(c.ordered, entry)
	}
	sort.Slice(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	return c, nil
}

// Default returns the catalog over the built-in seed registry.
func Default() *Catalog {
	c, err := New(seedVeils)
	if err != nil {
		// The seed table is compiled in; a malformed entry is a programmer error.
		panic(err)
	}
	return c
}

// Lookup returns the veil with the given ID.
func (c *Catalog) Lookup(id int) (Veil, error) {
	v, ok := c.byID[id]
	if !ok {
		return Veil{}, &ErrUnknownVeil{ID: id}
	}
	return *v, nil
}

// ByOpcode returns the veil with the given opcode.
func (c *Catalog) ByOpcode(opcode string) (Veil, bool) {
	v, ok := c.byOpcode[opcode]
	if !ok {
		return Veil{}, false
	}
	return *v, true
}

// Search returns veils whose name or description contains the query,
// case-insensitively, in ID order.
func (c *Catalog) Search(query string) []Veil {
	q := strings.ToLower(query)
	var out []Veil
	for _, v := range c.ordered {
		if strings.Contains(strings.ToLower(v.Name), q) ||
			strings.Contains(strings.ToLower(v.Description), q) {
			out = append(out, *v)
		}
	}
	return out
}

// ByTier returns all veils in a tier, in ID order.
func (c *Catalog) ByTier(tier string) []Veil {
	var out []Veil
	for _, v := range c.ordered {
		if v.Tier == tier {
			out = append(out, *v)
		}
	}
	return out
}

// All returns every veil in ID order.
func (c *Catalog) All() []Veil {
	out := make([]Veil, len(c.ordered))
	for i, v := range c.ordered {
		out[i] = *v
	}
	return out
}

// Len reports the registry size.
func (c *Catalog) Len() int { return len(c.ordered) }

// Stats summarises the registry by tier and category.
type Stats struct {
	Total      int            `json:"total"`
	ByTier     map[string]int `json:"by_tier"`
	ByCategory map[string]int `json:"by_category"`
}

// Statistics computes registry counts.
func (c *Catalog) Statistics() Stats {
	s := Stats{
		Total:      len(c.ordered),
		ByTier:     make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, v := range c.ordered {
		s.ByTier[v.Tier]++
		s.ByCategory[v.Category]++
	}
	return s
}
