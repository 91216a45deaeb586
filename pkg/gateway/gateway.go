// Package gateway implements the central ingest-and-fanout hub: the
// registry of connected sessions, the per-id and per-bbox subscription
// indices, the ignore set, and the periodic jobs that keep the Redis-backed
// store in sync. It is the single writer of all of this state; callers
// mutate it only through Gateway's methods, each of which holds the
// gateway's lock for the duration of a registry update but never while
// writing to a session's socket.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ogn-network/ogn-gateway/pkg/aprs"
	"github.com/ogn-network/ogn-gateway/pkg/log"
	"github.com/ogn-network/ogn-gateway/pkg/store"
)

const (
	recordCountInterval  = 30 * time.Minute
	flushInterval        = 5 * time.Second
	dropOutdatedWarmup   = 30 * time.Second
	dropOutdatedInterval = 30 * time.Minute
	ignoreListWarmup     = 10 * time.Second
	ignoreListInterval   = 10 * time.Minute

	maxFutureAge = 15 * time.Minute
	maxPastAge   = -5 * time.Minute
)

// Session is the gateway's view of a connected WebSocket client: just
// enough to route fanout traffic to it without the gateway knowing
// anything about sockets.
type Session interface {
	SendFast(line string)
	SendSlow(line string)
}

// Status is the reply to a status request.
type Status struct {
	Users       int
	RecordCount uint64
	HasCount    bool
}

// Gateway is the central hub. The zero value is not usable; use New.
type Gateway struct {
	store *store.Store
	log   *log.Logger

	mu              sync.RWMutex
	sessions        map[Session]struct{}
	idSubscriptions map[string][]Session
	bboxSubs        map[Session]aprs.BoundingBox
	ignoreSet       map[string]struct{}
	buffer          []store.Entry
	recordCount     uint64
	hasRecordCount  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Gateway backed by the given store. Call Start to arm its
// periodic jobs.
func New(st *store.Store) *Gateway {
	return &Gateway{
		store:           st,
		log:             log.ForService("gateway"),
		sessions:        make(map[Session]struct{}),
		idSubscriptions: make(map[string][]Session),
		bboxSubs:        make(map[Session]aprs.BoundingBox),
		ignoreSet:       make(map[string]struct{}),
		stopCh:          make(chan struct{}),
	}
}

// Start triggers an immediate record-count refresh and arms the gateway's
// periodic jobs. It returns once all jobs are scheduled; they keep running
// in background goroutines until Stop is called or ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) {
	g.updateRecordCount()

	g.wg.Add(1)
	go g.runEvery(ctx, recordCountInterval, g.updateRecordCount)

	g.wg.Add(1)
	go g.runEvery(ctx, flushInterval, g.flushRecords)

	g.wg.Add(1)
	go g.runAfterThenEvery(ctx, dropOutdatedWarmup, dropOutdatedInterval, g.dropOutdatedRecords)

	g.wg.Add(1)
	go g.runAfterThenEvery(ctx, ignoreListWarmup, ignoreListInterval, g.updateIgnoreList)
}

// Stop signals all periodic jobs to exit and waits for them to finish.
func (g *Gateway) Stop() {
	close(g.stopCh)
	g.wg.Wait()
}

func (g *Gateway) runEvery(ctx context.Context, interval time.Duration, fn func()) {
	defer g.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (g *Gateway) runAfterThenEvery(ctx context.Context, warmup, interval time.Duration, fn func()) {
	defer g.wg.Done()
	timer := time.NewTimer(warmup)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-g.stopCh:
		return
	case <-timer.C:
		fn()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Connect registers a newly-established session.
func (g *Gateway) Connect(s Session) {
	g.mu.Lock()
	g.sessions[s] = struct{}{}
	n := len(g.sessions)
	g.mu.Unlock()
	g.log.Debugf("client connected (%d clients)", n)
}

// Disconnect removes a session from every registry it may appear in.
func (g *Gateway) Disconnect(s Session) {
	g.mu.Lock()
	delete(g.bboxSubs, s)
	for id, subs := range g.idSubscriptions {
		g.idSubscriptions[id] = removeFirst(subs, s)
	}
	delete(g.sessions, s)
	n := len(g.sessions)
	g.mu.Unlock()
	g.log.Debugf("client disconnected (%d clients)", n)
}

// SubscribeToID appends s to id's subscriber list. Duplicate subscriptions
// are permitted.
func (g *Gateway) SubscribeToID(id string, s Session) {
	g.mu.Lock()
	g.idSubscriptions[id] = append(g.idSubscriptions[id], s)
	g.mu.Unlock()
}

// UnsubscribeFromID removes the first occurrence of s from id's subscriber
// list, if present.
func (g *Gateway) UnsubscribeFromID(id string, s Session) {
	g.mu.Lock()
	if subs, ok := g.idSubscriptions[id]; ok {
		g.idSubscriptions[id] = removeFirst(subs, s)
	}
	g.mu.Unlock()
}

// SetBoundingBox replaces s's bounding box, overwriting any previous one.
func (g *Gateway) SetBoundingBox(s Session, bbox aprs.BoundingBox) {
	g.mu.Lock()
	g.bboxSubs[s] = bbox
	g.mu.Unlock()
}

// Status reports the number of connected sessions and the cached record
// count estimate.
func (g *Gateway) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Status{
		Users:       len(g.sessions),
		RecordCount: g.recordCount,
		HasCount:    g.hasRecordCount,
	}
}

// HandlePosition routes one parsed APRS position: drops it against the
// ignore set and freshness window, fans it out to matching id- and
// bbox-subscribers (deduplicating sessions that match both), and buffers it
// for the next flush to the store. Fanout happens before the buffer append,
// so live delivery is never delayed by persistence.
func (g *Gateway) HandlePosition(now time.Time, pos aprs.Position) {
	t := aprs.TimeToDateTime(now, pos.Time)

	g.mu.RLock()
	_, ignored := g.ignoreSet[pos.ID]
	g.mu.RUnlock()
	if ignored {
		return
	}

	age := t.Sub(now)
	if age > maxFutureAge || age < maxPastAge {
		return
	}

	g.mu.RLock()
	idSubs := g.idSubscriptions[pos.ID]
	idSet := make(map[Session]struct{}, len(idSubs))
	for _, s := range idSubs {
		idSet[s] = struct{}{}
	}
	var bboxSubs []Session
	for s, bbox := range g.bboxSubs {
		if _, dup := idSet[s]; dup {
			continue
		}
		if bbox.Contains(pos.Longitude, pos.Latitude) {
			bboxSubs = append(bboxSubs, s)
		}
	}
	g.mu.RUnlock()

	if len(idSubs) > 0 || len(bboxSubs) > 0 {
		line := fmt.Sprintf("%s|%d|%.6f|%.6f|%d|%d",
			pos.ID, t.Unix(), pos.Longitude, pos.Latitude, pos.Course, int(pos.AltitudeM))

		for _, s := range idSubs {
			s.SendFast(line)
		}
		for _, s := range bboxSubs {
			s.SendSlow(line)
		}
	}

	g.mu.Lock()
	g.buffer = append(g.buffer, store.Entry{
		ID:        pos.ID,
		Time:      t,
		Lon:       pos.Longitude,
		Lat:       pos.Latitude,
		AltitudeM: pos.AltitudeM,
	})
	g.mu.Unlock()
}

func (g *Gateway) flushRecords() {
	g.mu.Lock()
	batch := g.buffer
	g.buffer = nil
	g.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := g.store.Append(batch); err != nil {
		g.log.Errorf("flushing %d records to store: %v", len(batch), err)
		return
	}

	g.mu.Lock()
	if g.hasRecordCount {
		g.recordCount += uint64(len(batch))
	}
	g.mu.Unlock()
	g.log.Debugf("flushed %d records to store", len(batch))
}

func (g *Gateway) updateRecordCount() {
	n, err := g.store.Count()
	if err != nil {
		g.log.Warnf("counting records in store: %v", err)
		return
	}

	g.mu.Lock()
	g.recordCount = n
	g.hasRecordCount = true
	g.mu.Unlock()
}

func (g *Gateway) dropOutdatedRecords() {
	g.log.Debugf("dropping outdated records from store")
	n, err := g.store.DropOutdated(time.Now().UTC())
	if err != nil {
		g.log.Warnf("dropping outdated records: %v", err)
		return
	}

	g.mu.Lock()
	if g.hasRecordCount {
		g.recordCount += n
	}
	g.mu.Unlock()
}

func (g *Gateway) updateIgnoreList() {
	ids, err := g.store.ReadIgnore()
	if err != nil {
		g.log.Warnf("reading ignore list from store: %v", err)
		return
	}

	ignoreSet, err := decodeIgnoreSet(ids)
	if err != nil {
		g.log.Warnf("decoding ignore list from store: %v", err)
		return
	}

	g.mu.Lock()
	g.ignoreSet = ignoreSet
	g.mu.Unlock()
	g.log.Debugf("updated ignore list from store: %d records", len(ignoreSet))
}

func removeFirst(subs []Session, s Session) []Session {
	for i, v := range subs {
		if v == s {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
