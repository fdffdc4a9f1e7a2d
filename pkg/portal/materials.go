package portal

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
)

const (
	// SortNewest keeps catalog order.
	SortNewest = "newest"

	// SortMostDownloaded orders by download count, highest first.
	SortMostDownloaded = "most-downloaded"

	filterAll = "all"
)

//go:embed materials.json
var catalogJSON []byte

// Material is one entry of the national curriculum catalog.
type Material struct {
	Level   string `json:"level"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
}

// Key is the name downloads of m are counted under.
func (m Material) Key() string {
	return m.Level + " - " + m.Subject
}

// Filter narrows and orders a material list. Empty or "all" level and
// subject values do not filter.
type Filter struct {
	Search  string
	Level   string
	Subject string
	Sort    string
}

// Catalog returns the bundled materials catalog.
func Catalog() ([]Material, error) {
	return LoadCatalog(strings.NewReader(string(catalogJSON)))
}

// LoadCatalog reads a JSON array of materials.
func LoadCatalog(r io.Reader) ([]Material, error) {
	var materials []Material
	if err := json.NewDecoder(r).Decode(&materials); err != nil {
		return nil, fmt.Errorf("decoding materials catalog: %w", err)
	}
	return materials, nil
}

// FilterMaterials applies f to materials. counts is keyed by Material.Key
// and only consulted for SortMostDownloaded; ties keep catalog order.
func FilterMaterials(materials []Material, f Filter, counts map[string]int) []Material {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Material, 0, len(materials))
	for _, m := range materials {
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Subject), search) &&
			!strings.Contains(strings.ToLower(m.Level), search) {
			continue
		}
		if !matchesChoice(f.Level, m.Level) || !matchesChoice(f.Subject, m.Subject) {
			continue
		}
		out = append(out, m)
	}

	if f.Sort == SortMostDownloaded {
		sort.SliceStable(out, func(i, j int) bool {
			return counts[out[i].Key()] > counts[out[j].Key()]
		})
	}

	return out
}

func matchesChoice(choice, value string) bool {
	return choice == "" || choice == filterAll || choice == value
}

// Levels returns the distinct levels in materials, sorted.
func Levels(materials []Material) []string {
	return distinct(materials, func(m Material) string { return m.Level })
}

// Subjects returns the distinct subjects in materials, sorted.
func Subjects(materials []Material) []string {
	return distinct(materials, func(m Material) string { return m.Subject })
}

func distinct(materials []Material, field func(Material) string) []string {
	seen := make(map[string]struct{}, len(materials))
	out := []string{}
	for _, m := range materials {
		v := field(m)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
