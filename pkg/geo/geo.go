// Package geo converts geodetic positions to Earth-centered coordinates and
// measures straight-line distances between them.
package geo

import "math"

// WGS-84 ellipsoid.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	eccentricity2 = flattening * (2 - flattening)
)

// Position is a geodetic position: longitude and latitude in degrees,
// altitude in meters above the ellipsoid.
type Position struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	Alt float64 `json:"alt"`
}

// ECEF is an Earth-centered, Earth-fixed point in meters.
type ECEF struct{ X, Y, Z float64 }

// ECEF converts p to Earth-centered coordinates.
func (p Position) ECEF() ECEF {
	lon := p.Lon * math.Pi / 180
	lat := p.Lat * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// prime vertical radius of curvature
	n := semiMajorAxis / math.Sqrt(1-eccentricity2*sinLat*sinLat)
	return ECEF{
		X: (n + p.Alt) * cosLat * cosLon,
		Y: (n + p.Alt) * cosLat * sinLon,
		Z: (n*(1-eccentricity2) + p.Alt) * sinLat,
	}
}

// Distance is the straight-line (chord) distance between a and b in meters.
func Distance(a, b Position) float64 {
	pa, pb := a.ECEF(), b.ECEF()
	return math.Sqrt(sq(pa.X-pb.X) + sq(pa.Y-pb.Y) + sq(pa.Z-pb.Z))
}

// Round2 rounds meters to centimeters.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

func sq(v float64) float64 { return v * v }
