package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/gorilla/websocket"

	"github.com/ogn-network/ogn-gateway/pkg/gateway"
	"github.com/ogn-network/ogn-gateway/pkg/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	st, err := store.New("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("constructing store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	gw := gateway.New(st)
	return NewServer(gw, st), st, mr
}

func TestHandleStatusReportsUsersAndNullCount(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	s.HandleStatus(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var got StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Users != 0 {
		t.Fatalf("expected 0 users, got %d", got.Users)
	}
	if got.Positions != nil {
		t.Fatalf("expected nil positions before first count refresh, got %v", *got.Positions)
	}
}

func TestHandleDDBPassesThroughStoredDocument(t *testing.T) {
	s, st, _ := newTestServer(t)

	if err := st.WriteDDB(`{"FLRAAA":{"category":1}}`); err != nil {
		t.Fatalf("seeding ddb: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ddb", nil)
	rr := httptest.NewRecorder()
	s.HandleDDB(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != `{"FLRAAA":{"category":1}}` {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestCorsMiddlewareSetsHeadersAndShortCircuitsOptions(t *testing.T) {
	called := false
	h := CorsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/ddb", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if called {
		t.Fatal("OPTIONS request should not reach the wrapped handler")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected Access-Control-Allow-Origin: %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Fatalf("unexpected Access-Control-Allow-Methods: %q", got)
	}
}

func TestHandleRecordsFormatsAndFiltersByRange(t *testing.T) {
	s, st, _ := newTestServer(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := st.Append([]store.Entry{
		{ID: "FLRAAA", Time: base, Lon: 2.5, Lat: 48.1, AltitudeM: 1000},
		{ID: "FLRAAA", Time: base.Add(time.Hour), Lon: 2.6, Lat: 48.2, AltitudeM: 1100},
	}); err != nil {
		t.Fatalf("appending: %v", err)
	}

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	url := fmt.Sprintf("/api/records/FLRAAA?after=%d&before=%d", base.Unix(), base.Add(time.Hour).Unix())
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got map[string][]string
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	lines, ok := got["FLRAAA"]
	if !ok || len(lines) != 2 {
		t.Fatalf("expected 2 records for FLRAAA, got %+v", got)
	}
	if want := fmt.Sprintf("%d|2.500000|48.099998|1000", base.Unix()); lines[0] != want {
		t.Fatalf("unexpected first line: got %s, want %s", lines[0], want)
	}
}

func TestHandleLiveUpgradesAndRoutesThroughGateway(t *testing.T) {
	s, _, _ := newTestServer(t)

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.gateway.Status().Users == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected session to register with the gateway")
}
