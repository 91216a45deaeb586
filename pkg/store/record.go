package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// recordSize is the fixed on-disk width of a StoredPosition: a u16 offset
// within the hour, an i16 altitude in meters, and two f32 coordinates.
const recordSize = 2 + 2 + 4 + 4

// StoredPosition is the compact, persisted form of a Position. Time is
// reconstructed by adding SecondsInHour to the bucket's epoch second, so
// the record itself never carries a full timestamp.
type StoredPosition struct {
	SecondsInHour uint16
	AltitudeM     int16
	Longitude     float32
	Latitude      float32
}

// NewStoredPosition derives a StoredPosition from an absolute time and the
// gateway's float64 position fields, matching the source's as-f32/as-i16
// narrowing.
func NewStoredPosition(t time.Time, longitude, latitude, altitude float64) StoredPosition {
	secondsInHour, _ := bucketFor(t)
	return StoredPosition{
		SecondsInHour: uint16(secondsInHour),
		AltitudeM:     int16(altitude),
		Longitude:     float32(longitude),
		Latitude:      float32(latitude),
	}
}

// encode serializes a StoredPosition into exactly recordSize little-endian
// bytes, in field declaration order.
func (p StoredPosition) encode() []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.SecondsInHour)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.AltitudeM))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Longitude))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(p.Latitude))
	return buf
}

// decodeRecords chunks a bucket's raw bytes into StoredPosition values.
// A truncated tail chunk (not exactly recordSize bytes) is rejected.
func decodeRecords(raw []byte) ([]StoredPosition, error) {
	if len(raw)%recordSize != 0 {
		return nil, fmt.Errorf("store: bucket length %d is not a multiple of record size %d", len(raw), recordSize)
	}

	n := len(raw) / recordSize
	out := make([]StoredPosition, n)
	for i := 0; i < n; i++ {
		chunk := raw[i*recordSize : (i+1)*recordSize]
		out[i] = StoredPosition{
			SecondsInHour: binary.LittleEndian.Uint16(chunk[0:2]),
			AltitudeM:     int16(binary.LittleEndian.Uint16(chunk[2:4])),
			Longitude:     math.Float32frombits(binary.LittleEndian.Uint32(chunk[4:8])),
			Latitude:      math.Float32frombits(binary.LittleEndian.Uint32(chunk[8:12])),
		}
	}
	return out, nil
}

// bucketFor returns the top-of-hour UNIX second containing t, and the
// seconds-within-hour offset.
func bucketFor(t time.Time) (secondsInHour int64, bucketEpoch int64) {
	sec := t.Unix()
	bucketEpoch = (sec / 3600) * 3600
	return sec - bucketEpoch, bucketEpoch
}
