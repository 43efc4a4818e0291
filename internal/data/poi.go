package data

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poiwarden/server/internal/geo"
)

// POIEntry is the YAML shape of one catalog row.
type POIEntry struct {
	ID              string    `yaml:"id"`       // canonical name, e.g. "Tisy Power Plant T4"
	Alias           string    `yaml:"alias"`    // short display name, e.g. "Tisy"
	Aliases         []string  `yaml:"aliases"`  // extra accepted inputs
	Position        []float64 `yaml:"position"` // [X, elevation, Z]
	SafePosition    []float64 `yaml:"safe_position"`
	ClaimRadius     float64   `yaml:"claim_radius"`     // 0 = config default
	IntrusionRadius float64   `yaml:"intrusion_radius"` // 0 = config default
	KickRadius      float64   `yaml:"kick_radius"`
	Dynamic         bool      `yaml:"dynamic"` // event POI, claimable without being present
}

// POI is an immutable catalog entry at runtime.
type POI struct {
	ID              string
	Alias           string
	Aliases         []string
	Position        geo.Position
	SafePosition    geo.Position
	ClaimRadius     float64
	IntrusionRadius float64
	KickRadius      float64
	Dynamic         bool
}

// POITable provides lookup of POIs by canonical id, preserving file order.
type POITable struct {
	pois []*POI
	byID map[string]*POI // keyed by lowercased canonical id
}

// HasGeometry reports whether this POI has a fixed world position.
// Dynamic event POIs may omit one; they are claimable by name but
// excluded from proximity enforcement.
func (p *POI) HasGeometry() bool {
	return p.KickRadius > 0
}

// LoadPOITable loads poi_list.yaml. Entries that omit claim or
// intrusion radii inherit the given defaults; a missing kick radius is
// a catalog error since relocation depends on it, except for dynamic
// entries, which may omit geometry entirely.
func LoadPOITable(path string, defaultClaimRadius, defaultIntrusionRadius float64) (*POITable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read poi list: %w", err)
	}
	var entries []POIEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse poi list: %w", err)
	}

	t := &POITable{
		pois: make([]*POI, 0, len(entries)),
		byID: make(map[string]*POI, len(entries)),
	}
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("poi entry %d: missing id", i)
		}
		var pos, safe geo.Position
		if e.Dynamic && len(e.Position) == 0 {
			if e.KickRadius != 0 {
				return nil, fmt.Errorf("poi %s: kick_radius without a position", e.ID)
			}
		} else {
			var err error
			pos, err = toPosition(e.Position)
			if err != nil {
				return nil, fmt.Errorf("poi %s: position: %w", e.ID, err)
			}
			safe, err = toPosition(e.SafePosition)
			if err != nil {
				return nil, fmt.Errorf("poi %s: safe_position: %w", e.ID, err)
			}
			if e.KickRadius <= 0 {
				return nil, fmt.Errorf("poi %s: kick_radius must be positive", e.ID)
			}
		}
		p := &POI{
			ID:              e.ID,
			Alias:           e.Alias,
			Aliases:         e.Aliases,
			Position:        pos,
			SafePosition:    safe,
			ClaimRadius:     e.ClaimRadius,
			IntrusionRadius: e.IntrusionRadius,
			KickRadius:      e.KickRadius,
			Dynamic:         e.Dynamic,
		}
		if p.ClaimRadius <= 0 {
			p.ClaimRadius = defaultClaimRadius
		}
		if p.IntrusionRadius <= 0 {
			p.IntrusionRadius = defaultIntrusionRadius
		}
		if p.Alias == "" {
			p.Alias = p.ID
		}
		key := strings.ToLower(p.ID)
		if _, dup := t.byID[key]; dup {
			return nil, fmt.Errorf("poi %s: duplicate id", e.ID)
		}
		t.pois = append(t.pois, p)
		t.byID[key] = p
	}
	return t, nil
}

func toPosition(v []float64) (geo.Position, error) {
	if len(v) != 3 {
		return geo.Position{}, fmt.Errorf("want [x, elevation, z], got %d values", len(v))
	}
	return geo.Position{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Get returns the POI with the given canonical id (case-insensitive),
// or nil if none.
func (t *POITable) Get(id string) *POI {
	return t.byID[strings.ToLower(id)]
}

// All returns the catalog in file order. Callers must not mutate.
func (t *POITable) All() []*POI {
	return t.pois
}

// Count returns the number of catalog entries.
func (t *POITable) Count() int {
	return len(t.pois)
}
