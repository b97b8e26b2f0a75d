// Package gpx reduces an uploaded GPX track to the route statistics stored
// with an event: horizontal distance, cumulative ascent and cumulative descent.
//
// Only the first track and its first segment are read. Points without a
// position are left out of the distance sum, and elevation is only compared
// between neighbouring points that both carry an <ele> value.
package gpx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// EarthRadius is the sphere radius used by Haversine, in meters.
const EarthRadius = 6371000.0

// ErrMalformed is wrapped by Analyze when the input cannot be decoded as XML.
var ErrMalformed = errors.New("gpx: malformed document")

// TrackPoint is a single <trkpt>. Nil fields were absent or unparseable.
type TrackPoint struct {
	Lat *float64
	Lon *float64
	Ele *float64
}

// HasPosition reports whether both latitude and longitude are present.
func (p TrackPoint) HasPosition() bool {
	return p.Lat != nil && p.Lon != nil
}

// Stats are the rounded route statistics persisted on a Route row.
type Stats struct {
	DistanceM int `json:"distance_m"`
	AscentM   int `json:"ascent_m"`
	DescentM  int `json:"descent_m"`
}

// Result is the outcome of Analyze. Err is set when the document could not
// be read; Stats is then zero-valued.
type Result struct {
	Stats  Stats
	Points int
	Err    error
}

// Parsed reports whether the document was decoded. A parsed document with no
// track still counts as parsed and yields zero stats.
func (r Result) Parsed() bool {
	return r.Err == nil
}

type document struct {
	XMLName xml.Name `xml:"gpx"`
	Tracks  []track  `xml:"trk"`
}

type track struct {
	Segments []segment `xml:"trkseg"`
}

type segment struct {
	Points []rawPoint `xml:"trkpt"`
}

type rawPoint struct {
	Lat string  `xml:"lat,attr"`
	Lon string  `xml:"lon,attr"`
	Ele *string `xml:"ele"`
}

// Parse decodes data and returns the points of the first segment of the
// first track. A document without a track or segment yields no points and no
// error; only undecodable XML is an error. Non UTF-8 encoding declarations
// such as ISO-8859-1 or windows-1250 are honored.
func Parse(data []byte) ([]TrackPoint, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	var doc document
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return firstSegment(doc), nil
}

func firstSegment(doc document) []TrackPoint {
	if len(doc.Tracks) == 0 || len(doc.Tracks[0].Segments) == 0 {
		return nil
	}

	raw := doc.Tracks[0].Segments[0].Points
	points := make([]TrackPoint, 0, len(raw))
	for _, rp := range raw {
		p := TrackPoint{
			Lat: parseNumber(rp.Lat),
			Lon: parseNumber(rp.Lon),
		}
		if rp.Ele != nil {
			p.Ele = parseNumber(*rp.Ele)
		}
		points = append(points, p)
	}
	return points
}

func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ComputeStats reduces points to rounded distance, ascent and descent.
func ComputeStats(points []TrackPoint) Stats {
	positioned := make([]TrackPoint, 0, len(points))
	for _, p := range points {
		if p.HasPosition() {
			positioned = append(positioned, p)
		}
	}

	var distance float64
	for i := 1; i < len(positioned); i++ {
		a, b := positioned[i-1], positioned[i]
		distance += Haversine(*a.Lat, *a.Lon, *b.Lat, *b.Lon)
	}

	// Elevation walks the unfiltered order: a point without <ele> breaks the
	// pair on either side of it.
	var ascent, descent float64
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1].Ele, points[i].Ele
		if prev == nil || curr == nil {
			continue
		}
		diff := *curr - *prev
		if diff > 0 {
			ascent += diff
		} else {
			descent -= diff
		}
	}

	return Stats{
		DistanceM: int(math.Round(distance)),
		AscentM:   int(math.Round(ascent)),
		DescentM:  int(math.Round(descent)),
	}
}

// Haversine returns the great-circle distance in meters between two
// coordinates given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }

	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := phi2 - phi1
	dLambda := toRad(lon2) - toRad(lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// Analyze parses data and computes its stats, keeping the parse error next to
// the zero result instead of returning it.
func Analyze(data []byte) Result {
	points, err := Parse(data)
	if err != nil {
		return Result{Err: err}
	}
	return Result{
		Stats:  ComputeStats(points),
		Points: len(points),
	}
}

// StatsFromBytes never fails: an unreadable document is indistinguishable
// from an empty route.
func StatsFromBytes(data []byte) Stats {
	return Analyze(data).Stats
}
