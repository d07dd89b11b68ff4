package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/okian/profiler/internal/domain/quiz"
)

// Column aliases accepted in the catalog CSV header. The first alias is the
// canonical name.
var columnAliases = map[string][]string{ //nolint:gochecknoglobals // static header mapping
	"name":        {"name", "pokemon_name"},
	"type":        {"type", "type1"},
	"hp":          {"hp"},
	"attack":      {"attack"},
	"defense":     {"defense"},
	"image":       {"img_url", "image"},
	"rare_image":  {"shiny_img_url", "rare_image"},
	"description": {"description", "pokedex_entry"},
	"legendary":   {"is_legendary", "legendary"},
	"mythical":    {"is_mythical", "mythical"},
}

var requiredColumns = []string{ //nolint:gochecknoglobals // static header mapping
	"name", "type", "hp", "attack", "defense", "image", "rare_image", "description", "legendary", "mythical",
}

// LoadFile reads a catalog CSV from path. A missing or malformed file is a
// startup fault.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCatalogLoad, path, err)
	}
	defer f.Close() //nolint:errcheck

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load parses a catalog CSV. The first row is the header.
func Load(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrCatalogLoad, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty file (no header row)", ErrCatalogLoad)
	}

	index := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make(map[string]int, len(columnAliases))
	for canonical, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				cols[canonical] = i
				break
			}
		}
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrCatalogLoad, name)
		}
	}

	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		line := i + 2
		e, err := parseRow(rec, cols, index)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrCatalogLoad, line, err)
		}
		entries = append(entries, e)
	}
	return New(entries)
}

func parseRow(rec []string, cols, header map[string]int) (Entry, error) {
	get := func(col string) string {
		return strings.TrimSpace(rec[cols[col]])
	}

	e := Entry{
		Name:        get("name"),
		Type:        get("type"),
		Description: get("description"),
		Image:       get("image"),
		RareImage:   get("rare_image"),
	}

	var err error
	if e.Stats.HP, err = parseStat(get("hp")); err != nil {
		return Entry{}, fmt.Errorf("hp: %w", err)
	}
	if e.Stats.Attack, err = parseStat(get("attack")); err != nil {
		return Entry{}, fmt.Errorf("attack: %w", err)
	}
	if e.Stats.Defense, err = parseStat(get("defense")); err != nil {
		return Entry{}, fmt.Errorf("defense: %w", err)
	}
	if e.Legendary, err = strconv.ParseBool(get("legendary")); err != nil {
		return Entry{}, fmt.Errorf("is_legendary: %w", err)
	}
	if e.Mythical, err = strconv.ParseBool(get("mythical")); err != nil {
		return Entry{}, fmt.Errorf("is_mythical: %w", err)
	}

	e.seed = parseSeed(rec, header)
	return e, nil
}

// parseStat accepts integers and integral floats ("45.0"), rejecting negatives.
func parseStat(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value %q", s)
	}
	return int(f), nil
}

// parseSeed reads the optional quiz profile columns. A profile is only used
// when every required quiz field is present.
func parseSeed(rec []string, header map[string]int) *quiz.Answers {
	var a quiz.Answers
	for _, q := range quiz.Questions() {
		i, ok := header[string(q.Field)]
		if !ok || strings.TrimSpace(rec[i]) == "" {
			if q.Optional {
				continue
			}
			return nil
		}
		_ = a.Set(q.Field, strings.TrimSpace(rec[i]))
	}
	return &a
}
