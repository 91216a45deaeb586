package aprs

import (
	"regexp"
	"strconv"
)

// BoundingBox is a geographic filter window, parsed from the WebSocket
// subscription protocol's "bbox|left|bottom|right|top" command.
type BoundingBox struct {
	Left   float64
	Bottom float64
	Right  float64
	Top    float64
}

var bboxRE = regexp.MustCompile(`^(-?\d+(?:\.\d*)?)\|(-?\d+(?:\.\d*)?)\|(-?\d+(?:\.\d*)?)\|(-?\d+(?:\.\d*)?)$`)

// TryParseBoundingBox parses "left|bottom|right|top" decimal-degree
// coordinates. It returns ok=false for malformed text and for
// out-of-range or inverted (top < bottom) boxes; antimeridian-crossing
// boxes (left > right) are valid.
func TryParseBoundingBox(text string) (bbox BoundingBox, ok bool) {
	m := bboxRE.FindStringSubmatch(text)
	if m == nil {
		return BoundingBox{}, false
	}

	left, _ := strconv.ParseFloat(m[1], 64)
	bottom, _ := strconv.ParseFloat(m[2], 64)
	right, _ := strconv.ParseFloat(m[3], 64)
	top, _ := strconv.ParseFloat(m[4], 64)

	if left < -180 || left > 180 || right < -180 || right > 180 {
		return BoundingBox{}, false
	}
	if top < -90 || top > 90 || bottom < -90 || bottom > 90 || top < bottom {
		return BoundingBox{}, false
	}

	return BoundingBox{Left: left, Bottom: bottom, Right: right, Top: top}, true
}

// Contains reports whether (longitude, latitude) falls inside the box. When
// Left > Right the box wraps across the antimeridian, so containment on
// longitude becomes a union of the two half-planes rather than a range.
func (b BoundingBox) Contains(longitude, latitude float64) bool {
	if latitude > b.Top || latitude < b.Bottom {
		return false
	}
	if b.Left > b.Right {
		return longitude >= b.Left || longitude <= b.Right
	}
	return longitude >= b.Left && longitude <= b.Right
}
