// Package aprs parses OGN APRS position reports and bounding-box filter
// expressions off the wire.
package aprs

import (
	"regexp"
	"strconv"
	"time"
)

// Position is one parsed APRS position report.
type Position struct {
	ID        string
	Time      time.Time
	Latitude  float64
	Longitude float64
	AltitudeM float64
	Course    int
}

// positionRE matches lines like:
//
//	FLRDD9612>APRS,qAS,VillaBlau:/141956h4911.18N/00815.93E'126/059/A=003716 !W75! id06DD9612 ...
var positionRE = regexp.MustCompile(
	`(?P<id>[A-Z]{3}[0-9A-F]{6})` + // sender ID
		`[^:]+:` + // header incl. separator
		`/` + // position report indicator
		`(?P<time>\d{6})h` + // time in HHMMSS incl. `h` indicator
		`(?P<lat>\d{4}\.\d{2})` + // latitude angle in DDMM.mm
		`(?P<latsign>[NS])` + // latitude hemisphere
		`.` + // symbol table identifier
		`(?P<lon>\d{5}\.\d{2})` + // longitude angle in DDDMM.mm
		`(?P<lonsign>[WE])` + // longitude hemisphere
		`.` + // symbol code
		`(?P<course>\d{3})` + // course angle in DDD
		`/` + // separator
		`\d{3}` + // speed in knots (ignored)
		`/A=(?P<alt>\d{6})` + // altitude in feet
		`(?: !W(?P<ppe>\d\d)!)?`, // optional position precision enhancement
)

var positionSubexpNames = positionRE.SubexpNames()

// feetToMeter converts feet to meters.
func feetToMeter(feet float64) float64 {
	return feet * 0.3048
}

// Parse parses a raw APRS line into a Position. Lines that don't match the
// grammar return ok=false; this is the expected outcome for comment lines
// and any other non-position traffic on the feed, and is not logged as an
// error.
func Parse(line string) (pos Position, ok bool) {
	m := positionRE.FindStringSubmatch(line)
	if m == nil {
		return Position{}, false
	}

	group := func(name string) string {
		for i, n := range positionSubexpNames {
			if n == name {
				return m[i]
			}
		}
		return ""
	}

	id := group("id")

	hhmmss := group("time")
	hour, _ := strconv.Atoi(hhmmss[0:2])
	minute, _ := strconv.Atoi(hhmmss[2:4])
	second, _ := strconv.Atoi(hhmmss[4:6])
	t := time.Date(0, 1, 1, hour, minute, second, 0, time.UTC)

	ppe := group("ppe")

	latRaw := group("lat")
	latDeg, _ := strconv.ParseFloat(latRaw[0:2], 64)
	latMin, _ := strconv.ParseFloat(latRaw[2:], 64)
	latitude := latDeg + latMin/60
	if ppe != "" {
		enh, _ := strconv.ParseFloat(ppe[0:1], 64)
		latitude += enh / 60000
	}
	if group("latsign") != "N" {
		latitude = -latitude
	}

	lonRaw := group("lon")
	lonDeg, _ := strconv.ParseFloat(lonRaw[0:3], 64)
	lonMin, _ := strconv.ParseFloat(lonRaw[3:], 64)
	longitude := lonDeg + lonMin/60
	if ppe != "" {
		enh, _ := strconv.ParseFloat(ppe[1:2], 64)
		longitude += enh / 60000
	}
	if group("lonsign") != "E" {
		longitude = -longitude
	}

	course, _ := strconv.Atoi(group("course"))

	altFeet, _ := strconv.ParseFloat(group("alt"), 64)

	return Position{
		ID:        id,
		Time:      t,
		Latitude:  latitude,
		Longitude: longitude,
		AltitudeM: feetToMeter(altFeet),
		Course:    course,
	}, true
}

// TimeToDateTime reconstructs the absolute date of a time-of-day-only
// position report relative to now, choosing whichever of (now's date - 1,
// now's date, now's date + 1) puts the result within 12 hours of now. This
// handles reports that arrive shortly before or after UTC midnight out of
// order with the wall clock.
func TimeToDateTime(now time.Time, timeOfDay time.Time) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(),
		timeOfDay.Hour(), timeOfDay.Minute(), timeOfDay.Second(), 0, time.UTC)

	diff := now.Sub(candidate)
	switch {
	case diff.Hours() <= -12:
		return candidate.AddDate(0, 0, -1)
	case diff.Hours() >= 12:
		return candidate.AddDate(0, 0, 1)
	default:
		return candidate
	}
}
