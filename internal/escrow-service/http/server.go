package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/dto"
	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
)

// HeaderUserID identifica quem chama; autenticação fica na borda (gateway)
const HeaderUserID = "X-User-Id"

// Server expõe as operações do engine via REST
type Server struct {
	log *zap.Logger
	eng *engine.Engine
}

func NewServer(log *zap.Logger, eng *engine.Engine) *Server {
	return &Server{log: log, eng: eng}
}

// Router retorna o roteador HTTP com os endpoints de escrow
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/escrows", s.open)                   // Abre escrow (Created)
	r.Get("/escrows/{id}", s.get)                // Estado corrente
	r.Post("/escrows/{id}/fund", s.fund)         // Criador deposita e fixa referência
	r.Post("/escrows/{id}/accept", s.accept)     // Contraparte entra
	r.Post("/escrows/{id}/settle", s.settle)     // Liquida com variação decisiva
	r.Post("/escrows/{id}/withdraw", s.withdraw) // Criador recupera a custódia
	return r
}

func (s *Server) open(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenEscrowRequest
	if !decode(w, r, &req) {
		return
	}
	esc, err := s.eng.Open(r.Context(), engine.OpenRequest{
		Creator:     caller(r),
		Seed:        req.Seed,
		EntryFee:    req.EntryFee,
		PriceSource: req.PriceSource,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromEscrow(esc))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	esc, err := s.eng.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEscrow(esc))
}

func (s *Server) fund(w http.ResponseWriter, r *http.Request) {
	var req dto.FundEscrowRequest
	if !decode(w, r, &req) {
		return
	}
	esc, err := s.eng.Fund(r.Context(), chi.URLParam(r, "id"), caller(r), req.Direction)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEscrow(esc))
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) {
	esc, err := s.eng.Accept(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEscrow(esc))
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Settle(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSettlement(res))
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	esc, err := s.eng.Withdraw(r.Context(), chi.URLParam(r, "id"), caller(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromEscrow(esc))
}

func caller(r *http.Request) string { return strings.TrimSpace(r.Header.Get(HeaderUserID)) }

// decode aceita corpo vazio (todos os campos no default)
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json", Code: "BadRequest"})
	return false
}

// StatusFor traduz a classe do erro do engine para o status HTTP
func StatusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidEntryFee), errors.Is(err, engine.ErrInvalidCaller):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	}
	switch engine.KindOf(err) {
	case engine.KindPrecondition, engine.KindResource:
		return http.StatusConflict
	case engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindPolicy:
		return http.StatusUnprocessableEntity
	case engine.KindDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := dto.ErrorResponse{Error: err.Error(), Code: engine.CodeOf(err)}
	var ee *engine.Error
	if errors.As(err, &ee) {
		// mensagem literal, sem o contexto do wrap
		body.Error = ee.Msg
	}
	if status == http.StatusInternalServerError {
		s.log.Error("escrow request failed", zap.Error(err))
		body.Error = "internal error"
	}
	if errors.Is(err, engine.ErrBusy) {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
