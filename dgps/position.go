/*
	Copyright (c) 2022 R. van Twisk
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	position.go: ECEF position samples and WGS84 conversion
*/

package dgps

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gansidui/geohash"
	geo "github.com/kellydunn/golang-geo"
)

// WGS84
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
	wgs84B  = wgs84A * (1 - wgs84F)
	wgs84Ep = (wgs84A*wgs84A - wgs84B*wgs84B) / (wgs84B * wgs84B)
)

// PosVector is an earth-centered earth-fixed position in meters.
type PosVector struct {
	X float64
	Y float64
	Z float64
}

// FromECEFcm converts the centimeter fields of NAV-POSECEF.
func FromECEFcm(x, y, z int32) PosVector {
	return PosVector{X: float64(x) * 0.01, Y: float64(y) * 0.01, Z: float64(z) * 0.01}
}

func (p PosVector) Distance(o PosVector) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// DistanceXY ignores the ECEF Z axis, it is not a local horizontal distance.
func (p PosVector) DistanceXY(o PosVector) float64 {
	dx, dy := p.X-o.X, p.Y-o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// GroundDistance is the great circle distance in meters between the two
// positions projected onto the ellipsoid surface.
func (p PosVector) GroundDistance(o PosVector) float64 {
	a, b := p.ToLLH(), o.ToLLH()
	return geo.NewPoint(a.Lat, a.Lon).GreatCircleDistance(geo.NewPoint(b.Lat, b.Lon)) * 1000
}

/*
	ToLLH() converts to geodetic latitude/longitude (degrees) and height
	above the ellipsoid (meters), Bowring's method.
*/
func (p PosVector) ToLLH() LLH {
	r := math.Hypot(p.X, p.Y)
	if r == 0 && p.Z == 0 {
		return LLH{}
	}
	theta := math.Atan2(p.Z*wgs84A, r*wgs84B)
	st, ct := math.Sincos(theta)
	lat := math.Atan2(p.Z+wgs84Ep*wgs84B*st*st*st, r-wgs84E2*wgs84A*ct*ct*ct)
	lon := math.Atan2(p.Y, p.X)
	sl, cl := math.Sincos(lat)
	n := wgs84A / math.Sqrt(1-wgs84E2*sl*sl)
	var alt float64
	if math.Abs(cl) > 1e-9 {
		alt = r/cl - n
	} else {
		alt = math.Abs(p.Z) - wgs84B
	}
	return LLH{Lat: lat * 180 / math.Pi, Lon: lon * 180 / math.Pi, Alt: alt}
}

func (p PosVector) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

// LLH is a geodetic position, degrees and meters.
type LLH struct {
	Lat float64
	Lon float64
	Alt float64
}

func (l LLH) ToECEF() PosVector {
	lat := l.Lat * math.Pi / 180
	lon := l.Lon * math.Pi / 180
	sl, cl := math.Sincos(lat)
	so, co := math.Sincos(lon)
	n := wgs84A / math.Sqrt(1-wgs84E2*sl*sl)
	return PosVector{
		X: (n + l.Alt) * cl * co,
		Y: (n + l.Alt) * cl * so,
		Z: (n*(1-wgs84E2) + l.Alt) * sl,
	}
}

// Geohash of the horizontal position, precision characters long.
func (l LLH) Geohash(precision int) string {
	h, _ := geohash.Encode(l.Lat, l.Lon, precision)
	return h
}

func (l LLH) String() string {
	return fmt.Sprintf("(%.8f, %.8f, %.2f)", l.Lat, l.Lon, l.Alt)
}

// ParseLLH reads "lat,lon,alt" as given on the command line.
func ParseLLH(s string) (LLH, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return LLH{}, fmt.Errorf("position %q: want lat,lon,alt", s)
	}
	var v [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return LLH{}, fmt.Errorf("position %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] < -90 || v[0] > 90 || v[1] < -180 || v[1] > 180 {
		return LLH{}, fmt.Errorf("position %q: latitude/longitude out of range", s)
	}
	return LLH{Lat: v[0], Lon: v[1], Alt: v[2]}, nil
}
