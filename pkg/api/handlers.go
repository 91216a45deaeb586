package api

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ogn-network/ogn-gateway/pkg/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleStatus reports connected-user count, the cached record-count
// estimate, and host load averages. Any field the host can't supply comes
// back null rather than a zero, matching the source's Option<T> semantics.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.gateway.Status()

	resp := StatusResponse{
		Load:  readLoadAvg(),
		Users: status.Users,
	}
	if status.HasCount {
		n := status.RecordCount
		resp.Positions = &n
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// readLoadAvg parses /proc/loadavg's first three fields. It returns nil on
// any platform or read failure, since load averages are a best-effort
// Linux-only diagnostic, not a functional requirement.
func readLoadAvg() []float64 {
	raw, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 3 {
		return nil
	}
	load := make([]float64, 0, 3)
	for _, f := range fields[:3] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil
		}
		load = append(load, v)
	}
	return load
}

// HandleRecords serves historical positions for one or more comma-separated
// device ids, optionally bounded by ?after=<unix>&before=<unix>.
func (s *Server) HandleRecords(w http.ResponseWriter, r *http.Request) {
	idsParam := r.PathValue("ids")
	if idsParam == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "missing ids")
		return
	}
	ids := strings.Split(idsParam, ",")

	after, err := parseUnixParam(r, "after")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid after parameter")
		return
	}
	before, err := parseUnixParam(r, "before")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid before parameter")
		return
	}

	byID, err := s.store.ReadRange(ids, after, before)
	if err != nil {
		logger.Warnf("reading records: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal_error", "failed to read records")
		return
	}

	out := make(map[string][]string, len(byID))
	for id, positions := range byID {
		lines := make([]string, len(positions))
		for i, p := range positions {
			lines[i] = fmt.Sprintf("%d|%.6f|%.6f|%d", p.Time.Unix(), p.Lon, p.Lat, int(p.AltitudeM))
		}
		out[id] = lines
	}
	s.writeJSON(w, http.StatusOK, out)
}

func parseUnixParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

// HandleDDB serves the raw device database document as stored, so the
// cached JSON round-trips without a decode/re-encode step.
func (s *Server) HandleDDB(w http.ResponseWriter, r *http.Request) {
	raw, err := s.store.ReadDDB()
	if err != nil {
		logger.Warnf("reading ddb: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal_error", "failed to read device database")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(raw)); err != nil {
		logger.Warnf("writing ddb response: %v", err)
	}
}

// HandleLive upgrades the connection to a WebSocket and drives the
// subscription session until the client disconnects.
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("live: upgrade failed: %v", err)
		return
	}
	sess := session.New(conn, s.gateway)
	sess.Run()
}
