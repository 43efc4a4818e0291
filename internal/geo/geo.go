package geo

import "math"

// Position is a catalog-order world position: X, elevation, Z.
type Position struct {
	X float64
	Y float64 // elevation, ignored for distance purposes
	Z float64
}

// Point is a horizontal (planar) coordinate pair.
type Point struct {
	X float64
	Z float64
}

// Planar drops the elevation component.
func (p Position) Planar() Point {
	return Point{X: p.X, Z: p.Z}
}

// TelemetryPoint converts a raw telemetry triple into a planar point.
// The telemetry feed reports [X, Z, elevation] while the catalog stores
// [X, elevation, Z]; this is the remapping that makes both read the
// same horizontal axes.
func TelemetryPoint(raw []float64) (Point, bool) {
	if len(raw) < 2 {
		return Point{}, false
	}
	return Point{X: raw[0], Z: raw[1]}, true
}

// Distance returns the flat 2D Euclidean distance in meters.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dz*dz)
}

// Zone classifies how deep a player sits inside a POI's concentric radii.
type Zone int

const (
	ZoneOutside Zone = iota
	ZoneClaim        // within claim radius (group enrolment range)
	ZoneIntrusion    // within intrusion radius (warning range)
	ZoneKick         // within kick radius (forced relocation range)
)

func (z Zone) String() string {
	switch z {
	case ZoneClaim:
		return "claim"
	case ZoneIntrusion:
		return "intrusion"
	case ZoneKick:
		return "kick"
	default:
		return "outside"
	}
}

// Classify returns the innermost zone the distance falls into. The
// catalog is trusted data: kick ≤ intrusion ≤ claim is the expected
// ordering but not enforced here.
func Classify(dist, claimRadius, intrusionRadius, kickRadius float64) Zone {
	switch {
	case dist <= kickRadius:
		return ZoneKick
	case dist <= intrusionRadius:
		return ZoneIntrusion
	case dist <= claimRadius:
		return ZoneClaim
	default:
		return ZoneOutside
	}
}
