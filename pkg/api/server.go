// Package api provides the gateway's HTTP surface: status, historical
// record queries, the device database snapshot, and the WebSocket
// subscription upgrade.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ogn-network/ogn-gateway/pkg/gateway"
	"github.com/ogn-network/ogn-gateway/pkg/log"
	"github.com/ogn-network/ogn-gateway/pkg/store"
)

var logger = log.ForService("api")

// Server holds the dependencies the HTTP handlers need.
type Server struct {
	gateway *gateway.Gateway
	store   *store.Store
}

// NewServer constructs a Server wired to the gateway and store.
func NewServer(gw *gateway.Gateway, st *store.Store) *Server {
	return &Server{gateway: gw, store: st}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warnf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, errorCode, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: errorCode, Message: message})
}

// CorsMiddleware allows any origin, matching the gateway's public-API CORS
// contract.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
