// Package resolver maps free-text chat input to canonical POI ids.
package resolver

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/poiwarden/server/internal/data"
)

var foldCaser = cases.Fold()

// Normalize canonicalizes player-typed text and player names: Unicode
// NFKC, case folding, trimmed, inner whitespace collapsed.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = foldCaser.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Resolver resolves free text against the catalog's canonical names,
// display aliases, and registered alias keys.
type Resolver struct {
	minScore float64
	exact    map[string]string // normalized input → canonical id
	// candidates in catalog order; ties in fuzzy scoring go to the
	// first candidate (first-best wins).
	candidates []candidate
}

type candidate struct {
	text string // normalized
	id   string
}

// New builds a resolver over the catalog. minScore is the fuzzy
// acceptance threshold.
func New(table *data.POITable, minScore float64) *Resolver {
	r := &Resolver{
		minScore: minScore,
		exact:    make(map[string]string),
	}
	for _, poi := range table.All() {
		r.add(poi.ID, poi.ID)
		r.add(poi.Alias, poi.ID)
		for _, a := range poi.Aliases {
			r.add(a, poi.ID)
		}
	}
	return r
}

func (r *Resolver) add(text, id string) {
	n := Normalize(text)
	if n == "" {
		return
	}
	if _, dup := r.exact[n]; !dup {
		r.exact[n] = id
		r.candidates = append(r.candidates, candidate{text: n, id: id})
	}
}

// Resolve returns the canonical POI id for the input, or "" and false
// when nothing matches well enough.
func (r *Resolver) Resolve(input string) (string, bool) {
	n := Normalize(input)
	if n == "" {
		return "", false
	}
	if id, ok := r.exact[n]; ok {
		return id, true
	}

	bestScore := 0.0
	bestID := ""
	for _, c := range r.candidates {
		if s := diceCoefficient(n, c.text); s > bestScore {
			bestScore = s
			bestID = c.id
		}
	}
	if bestScore >= r.minScore {
		return bestID, true
	}
	return "", false
}

// diceCoefficient is the Sørensen–Dice bigram similarity in [0, 1].
func diceCoefficient(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i+2 <= len(a); i++ {
		bigrams[a[i:i+2]]++
	}
	matches := 0
	for i := 0; i+2 <= len(b); i++ {
		if bigrams[b[i:i+2]] > 0 {
			bigrams[b[i:i+2]]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(len(a)+len(b)-2)
}
