// Package store implements the bucketed Redis time-series layout: append-only
// writes of compact binary position records, hourly-bucketed range reads, a
// scan-based count estimator, and a retention-horizon garbage collector.
//
// Keys:
//
//	ogn:<id>:<bucket_epoch>  binary concatenation of 12-byte records
//	ogn-ddb                  UTF-8 JSON device database
//	ogn-ignore               UTF-8 JSON array of ignored device ids
package store

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis"

	"github.com/ogn-network/ogn-gateway/pkg/log"
)

const (
	ddbKey    = "ogn-ddb"
	ignoreKey = "ogn-ignore"

	bucketSeconds = 3600
	retention     = 24 * time.Hour

	scanMatch = "ogn:*:*"
	scanCount = 1000
)

var bucketKeyRE = regexp.MustCompile(`^ogn:[^:]+:(\d+)$`)

var logger = log.ForService("store")

// Store is the Redis-backed bucketed time-series store. A *redis.Client is
// already safe for concurrent use, so Store needs no locking of its own.
type Store struct {
	client *redis.Client
}

// New dials redisURL (a redis:// or rediss:// URL) and returns a Store
// wrapping the resulting client.
func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		return nil, fmt.Errorf("store: connecting to redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Entry is one (device id, position) pair to append.
type Entry struct {
	ID        string
	Time      time.Time
	Lon       float64
	Lat       float64
	AltitudeM float64
}

// Append groups entries by (id, bucket_epoch) and issues one pipelined
// APPEND per group, each value the concatenation of the group's
// binary-serialized records. It fails only on transport errors and never
// retries.
func (s *Store) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	type group struct {
		key string
		buf []byte
	}
	groups := make(map[string]*group, len(entries))
	order := make([]string, 0, len(entries))

	for _, e := range entries {
		_, bucketEpoch := bucketFor(e.Time)
		key := bucketKey(e.ID, bucketEpoch)
		rec := NewStoredPosition(e.Time, e.Lon, e.Lat, e.AltitudeM)

		g, ok := groups[key]
		if !ok {
			g = &group{key: key}
			groups[key] = g
			order = append(order, key)
		}
		g.buf = append(g.buf, rec.encode()...)
	}

	pipe := s.client.Pipeline()
	for _, key := range order {
		pipe.Append(key, string(groups[key].buf))
	}
	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("store: appending records: %w", err)
	}
	return nil
}

// Count scans all bucket keys, sums their byte lengths, and returns
// total_bytes / recordSize. This is an estimator, not an exact count.
func (s *Store) Count() (uint64, error) {
	var total uint64

	err := s.scanBuckets(func(key string, _ int64) error {
		n, err := s.client.StrLen(key).Result()
		if err != nil {
			return err
		}
		total += uint64(n)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: counting records: %w", err)
	}
	return total / uint64(recordSize), nil
}

// DropOutdated deletes every bucket whose bucket_epoch is older than the
// retention horizon (now - 24h) and returns the number of records removed.
// A failure to delete an individual key is logged and skipped; it does not
// abort the sweep.
func (s *Store) DropOutdated(now time.Time) (uint64, error) {
	cutoff := now.Add(-retention).Unix()
	var removed uint64

	err := s.scanBuckets(func(key string, bucketEpoch int64) error {
		if bucketEpoch >= cutoff {
			return nil
		}
		n, err := s.client.StrLen(key).Result()
		if err != nil {
			logger.Warnf("strlen %s: %v", key, err)
			return nil
		}
		if err := s.client.Del(key).Err(); err != nil {
			logger.Warnf("del %s: %v", key, err)
			return nil
		}
		removed += uint64(n) / uint64(recordSize)
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("store: scanning for outdated buckets: %w", err)
	}
	return removed, nil
}

// scanBuckets iterates every "ogn:*:*" key via server-side SCAN and invokes
// fn with the key and its parsed bucket epoch. Keys that don't match the
// bucket pattern are skipped.
func (s *Store) scanBuckets(fn func(key string, bucketEpoch int64) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(cursor, scanMatch, scanCount).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			m := bucketKeyRE.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			epoch, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				continue
			}
			if err := fn(key, epoch); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Position is a reconstructed, absolute-time record returned from ReadRange.
type Position struct {
	Time      time.Time
	Lon       float64
	Lat       float64
	AltitudeM float64
}

// ReadRange reads, for each id, every hour bucket in [after, before]
// inclusive, reconstructs absolute times, filters to [after, before],
// collapses records sharing the same seconds_within_hour within a bucket
// (first wins), and returns each id's positions sorted by time ascending.
// after defaults to now-24h, before defaults to now, when zero.
func (s *Store) ReadRange(ids []string, after, before time.Time) (map[string][]Position, error) {
	now := time.Now().UTC()
	if after.IsZero() {
		after = now.Add(-retention)
	}
	if before.IsZero() {
		before = now
	}

	out := make(map[string][]Position, len(ids))
	for _, id := range ids {
		positions, err := s.readRangeForID(id, after, before)
		if err != nil {
			return nil, err
		}
		out[id] = positions
	}
	return out, nil
}

func (s *Store) readRangeForID(id string, after, before time.Time) ([]Position, error) {
	_, startBucket := bucketFor(after)
	_, endBucket := bucketFor(before)

	var positions []Position
	for bucketEpoch := startBucket; bucketEpoch <= endBucket; bucketEpoch += bucketSeconds {
		key := bucketKey(id, bucketEpoch)
		raw, err := s.client.Get(key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: reading bucket %s: %w", key, err)
		}

		records, err := decodeRecords(raw)
		if err != nil {
			return nil, fmt.Errorf("store: decoding bucket %s: %w", key, err)
		}

		seen := make(map[uint16]bool, len(records))
		for _, rec := range records {
			if seen[rec.SecondsInHour] {
				continue
			}
			seen[rec.SecondsInHour] = true

			t := time.Unix(bucketEpoch+int64(rec.SecondsInHour), 0).UTC()
			if t.Before(after) || t.After(before) {
				continue
			}
			positions = append(positions, Position{
				Time:      t,
				Lon:       float64(rec.Longitude),
				Lat:       float64(rec.Latitude),
				AltitudeM: float64(rec.AltitudeM),
			})
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Time.Before(positions[j].Time)
	})
	return positions, nil
}

// ReadDDB returns the raw JSON device database document, or "{}" if absent.
func (s *Store) ReadDDB() (string, error) {
	v, err := s.client.Get(ddbKey).Result()
	if err == redis.Nil {
		return "{}", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: reading ddb: %w", err)
	}
	return v, nil
}

// WriteDDB overwrites the device database document.
func (s *Store) WriteDDB(json string) error {
	if err := s.client.Set(ddbKey, json, 0).Err(); err != nil {
		return fmt.Errorf("store: writing ddb: %w", err)
	}
	return nil
}

// ReadIgnore returns the raw JSON array of ignored device ids, or "[]" if
// absent. Decoding it is left to the caller.
func (s *Store) ReadIgnore() (string, error) {
	v, err := s.client.Get(ignoreKey).Result()
	if err == redis.Nil {
		return "[]", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: reading ignore list: %w", err)
	}
	return v, nil
}

// WriteIgnore overwrites the ignore-list document.
func (s *Store) WriteIgnore(json string) error {
	if err := s.client.Set(ignoreKey, json, 0).Err(); err != nil {
		return fmt.Errorf("store: writing ignore list: %w", err)
	}
	return nil
}

func bucketKey(id string, bucketEpoch int64) string {
	return fmt.Sprintf("ogn:%s:%d", id, bucketEpoch)
}
