// Package catalog holds the static reference data: one immutable entry per
// candidate outcome. The catalog is loaded once at startup and only read
// afterwards, so it is safe for unlimited concurrent readers.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/okian/profiler/internal/domain/quiz"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Sentinel kinds for catalog errors.
var (
	ErrCatalogLoad = errors.New("catalog load failed")
	ErrNotFound    = errors.New("outcome not in catalog")
)

// Stats are the base numeric attributes of an entry.
type Stats struct {
	HP      int `json:"hp"`
	Attack  int `json:"attack"`
	Defense int `json:"defense"`
}

// Entry is one candidate outcome.
type Entry struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Stats       Stats  `json:"stats"`
	Description string `json:"description"`
	Image       string `json:"image"`
	RareImage   string `json:"rare_image"`
	Legendary   bool   `json:"legendary"`
	Mythical    bool   `json:"mythical"`

	// seed is the quiz profile shipped alongside the entry, used to bootstrap
	// an empty feedback sink.
	seed *quiz.Answers
}

// IsRare reports whether the entry belongs to the rarity override pool.
func (e Entry) IsRare() bool {
	return e.Legendary || e.Mythical
}

// ImageFor selects the display asset; rare selects the alternate variant
// when one exists.
func (e Entry) ImageFor(rare bool) string {
	if rare && e.RareImage != "" {
		return e.RareImage
	}
	return e.Image
}

// DisplayType returns the type tag title-cased for display.
func (e Entry) DisplayType() string {
	return cases.Title(language.English).String(e.Type)
}

// SeedProfile returns the bundled quiz profile, if the catalog row had one.
func (e Entry) SeedProfile() (quiz.Answers, bool) {
	if e.seed == nil {
		return quiz.Answers{}, false
	}
	return *e.seed, true
}

// Catalog is the read-only store of entries keyed by unique name.
type Catalog struct {
	byName map[string]Entry
	names  []string
	rare   []string
}

// New builds a catalog from entries. Names must be unique and non-empty.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrCatalogLoad)
	}
	c := &Catalog{byName: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry with empty name", ErrCatalogLoad)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrCatalogLoad, e.Name)
		}
		if e.Stats.HP < 0 || e.Stats.Attack < 0 || e.Stats.Defense < 0 {
			return nil, fmt.Errorf("%w: negative stats for %q", ErrCatalogLoad, e.Name)
		}
		c.byName[e.Name] = e
		c.names = append(c.names, e.Name)
		if e.IsRare() {
			c.rare = append(c.rare, e.Name)
		}
	}
	sort.Strings(c.names)
	sort.Strings(c.rare)
	return c, nil
}

// Lookup returns the entry named name.
func (c *Catalog) Lookup(name string) (Entry, error) {
	e, ok := c.byName[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// Has reports whether name is a catalog key.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns every entry name, sorted.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// RarePool returns the names of legendary or mythical entries, sorted.
func (c *Catalog) RarePool() []string {
	return append([]string(nil), c.rare...)
}

// SeedRecords returns one confirmed feedback record per entry carrying a
// seed profile, in name order.
func (c *Catalog) SeedRecords() []quiz.FeedbackRecord {
	var out []quiz.FeedbackRecord
	for _, name := range c.names {
		if a, ok := c.byName[name].SeedProfile(); ok {
			out = append(out, quiz.FeedbackRecord{Answers: a, Outcome: name, Judgment: quiz.JudgmentMatch})
		}
	}
	return out
}
