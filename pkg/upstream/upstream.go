// Package upstream is the APRS-IS TCP reader: it dials the feed, logs in,
// reads newline-delimited position reports, and reconnects with jittered
// backoff on any transport error. Filtering beyond APRS-IS comment lines
// (ignore list, freshness window) is not this package's job.
package upstream

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/ogn-network/ogn-gateway/pkg/aprs"
	"github.com/ogn-network/ogn-gateway/pkg/log"
)

const (
	dialTimeout     = 10 * time.Second
	keepaliveEvery  = 30 * time.Second
	minBackoff      = 1 * time.Second
	maxBackoff      = 60 * time.Second
	loginLineFormat = "user %s pass -1 vers ogn-gateway 1.0 filter r/0/0/0\r\n"
)

var logger = log.ForService("upstream")

// Handler receives one parsed position as it arrives off the wire.
type Handler func(pos aprs.Position)

// Reader connects to an APRS-IS server and feeds parsed positions to a
// Handler, reconnecting for as long as ctx is alive.
type Reader struct {
	addr     string
	callsign string
	handler  Handler
}

// New constructs a Reader. addr is a host:port APRS-IS endpoint, callsign
// the login identity sent in the APRS-IS user line.
func New(addr, callsign string, handler Handler) *Reader {
	return &Reader{addr: addr, callsign: callsign, handler: handler}
}

// Run connects and reads until ctx is cancelled, reconnecting with
// jittered exponential backoff between attempts.
func (r *Reader) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Warnf("connection to %s lost: %v", r.addr, err)
		}

		wait := jitter(backoff)
		logger.Infof("reconnecting to %s in %v", r.addr, wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (r *Reader) runOnce(ctx context.Context) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", r.addr, err)
	}
	defer conn.Close()

	logger.Infof("connected to %s", r.addr)

	if _, err := fmt.Fprintf(conn, loginLineFormat, r.callsign); err != nil {
		return fmt.Errorf("sending login line: %w", err)
	}

	stop := make(chan struct{})
	go r.keepalive(conn, stop)
	defer close(stop)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		pos, ok := aprs.Parse(line)
		if !ok {
			continue
		}
		r.handler(pos)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading from %s: %w", r.addr, err)
	}
	return fmt.Errorf("connection to %s closed by peer", r.addr)
}

func (r *Reader) keepalive(conn net.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(conn, "# keep alive\r\n"); err != nil {
				return
			}
		}
	}
}

func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
