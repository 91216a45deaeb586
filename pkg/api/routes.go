package api

import "net/http"

// RegisterRoutes wires the gateway's HTTP surface onto mux, method-tagged
// the way the teacher's routing does.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/status", CorsMiddleware(http.HandlerFunc(s.HandleStatus)))
	mux.Handle("GET /api/records/{ids}", CorsMiddleware(http.HandlerFunc(s.HandleRecords)))
	mux.Handle("GET /api/ddb", CorsMiddleware(http.HandlerFunc(s.HandleDDB)))
	mux.Handle("OPTIONS /api/ddb", CorsMiddleware(http.HandlerFunc(noopHandler)))
	mux.HandleFunc("GET /api/live", s.HandleLive)
}

func noopHandler(w http.ResponseWriter, r *http.Request) {
}
