package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiwarden/server/internal/data"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poi_list.yaml")
	catalog := `
- id: "Tisy Power Plant T4"
  alias: "Tisy"
  aliases: ["tisy"]
  position: [580.93, 0, 13663.06]
  kick_radius: 260
  safe_position: [2495.62, 240.49, 12944.81]

- id: "Biathlon Arena T5"
  alias: "Biathlon Arena"
  aliases: ["biathlon"]
  position: [508.67, 0, 11099.16]
  kick_radius: 210
  safe_position: [5714.27, 273.52, 10907.29]

- id: "Svetloyarsk Oil Rig T5"
  alias: "Big Oil Rig"
  aliases: ["big oil rig", "big oil"]
  position: [15029.09, 0, 12761.80]
  kick_radius: 260
  safe_position: [11136.09, 143.67, 10614.50]
`
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	table, err := data.LoadPOITable(path, 500, 350)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return New(table, 0.6)
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Tisy", "tisy"},
		{"  Big   Oil  Rig ", "big oil rig"},
		{"TISY", "tisy"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveExact(t *testing.T) {
	r := testResolver(t)
	cases := []struct{ in, want string }{
		{"Tisy Power Plant T4", "Tisy Power Plant T4"},
		{"tisy", "Tisy Power Plant T4"},
		{"TISY", "Tisy Power Plant T4"},
		{"big oil rig", "Svetloyarsk Oil Rig T5"},
		{"Big Oil", "Svetloyarsk Oil Rig T5"},
		{"biathlon", "Biathlon Arena T5"},
	}
	for _, c := range cases {
		got, ok := r.Resolve(c.in)
		if !ok || got != c.want {
			t.Fatalf("Resolve(%q) = (%q, %v), want %q", c.in, got, ok, c.want)
		}
	}
}

func TestResolveFuzzy(t *testing.T) {
	r := testResolver(t)
	cases := []struct{ in, want string }{
		{"tissy", "Tisy Power Plant T4"},
		{"biathlin", "Biathlon Arena T5"},
		{"big oil rgi", "Svetloyarsk Oil Rig T5"},
	}
	for _, c := range cases {
		got, ok := r.Resolve(c.in)
		if !ok || got != c.want {
			t.Fatalf("Resolve(%q) = (%q, %v), want %q", c.in, got, ok, c.want)
		}
	}
}

func TestResolveRejectsGarbage(t *testing.T) {
	r := testResolver(t)
	for _, in := range []string{"xq", "zzzzzz", "hello everyone", ""} {
		if got, ok := r.Resolve(in); ok {
			t.Fatalf("Resolve(%q) = %q, want no match", in, got)
		}
	}
}

func TestDiceCoefficient(t *testing.T) {
	if s := diceCoefficient("night", "night"); s != 1 {
		t.Fatalf("identical strings: %f", s)
	}
	if s := diceCoefficient("night", "nacht"); s < 0.24 || s > 0.26 {
		t.Fatalf("night/nacht: %f, want 0.25", s)
	}
	if s := diceCoefficient("a", "ab"); s != 0 {
		t.Fatalf("short string: %f", s)
	}
}
