package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/oracle-simulator/dto"
)

// Server expõe /ws (stream de preços) e o controle manual /oracle/price
type Server struct {
	log    *zap.Logger
	oracle *Oracle
	hub    *Hub
}

func NewServer(log *zap.Logger, o *Oracle, h *Hub) *Server {
	return &Server{log: log, oracle: o, hub: h}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/oracle/price", s.price) // GET lista | POST fixa
	return mux
}

// Run publica um passeio aleatório a cada intervalo até o contexto terminar
func (s *Server) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, u := range s.oracle.Tick() {
				s.hub.Broadcast(u)
			}
		}
	}
}

func (s *Server) price(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.oracle.Snapshot())
	case http.MethodPost:
		var req dto.SetPriceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		u, err := s.oracle.Set(req.Source, req.Mantissa, req.Exponent, req.Conf)
		if errors.Is(err, ErrUnknownSource) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.Info("price set", zap.String("source", u.Source), zap.Int64("mantissa", u.Mantissa), zap.Int32("exponent", u.Exponent))
		s.hub.Broadcast(u)
		writeJSON(w, http.StatusOK, u)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
