package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/price-escrow-platform/internal/price-service/dto"
	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Reader é a leitura de preços persistidos (Postgres)
type Reader interface {
	ListCurrent(ctx context.Context) ([]events.PriceUpdate, error)
	GetCurrent(ctx context.Context, source string) (events.PriceUpdate, error)
	History(ctx context.Context, source string, limit int) ([]events.PriceUpdate, error)
}

// CurrentCache é o preço corrente no Redis; ok=false quando ausente ou expirado
type CurrentCache interface {
	GetCurrent(ctx context.Context, source string) (u events.PriceUpdate, ok bool, err error)
}

// API expõe os endpoints REST de consulta de preços
// Utiliza um repositório de leitura (Postgres) e cache (Redis)
type API struct {
	ReadRepo Reader       // acesso ao banco de dados
	Cache    CurrentCache // preço corrente
	WS       http.Handler // opcional: /ws
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/prices", a.listPrices)                  // Preços correntes de todas as fontes
	r.Get("/v1/prices/{source}", a.getPrice)           // Preço corrente de uma fonte
	r.Get("/v1/prices/{source}/history", a.getHistory) // Histórico de uma fonte
	if a.WS != nil {
		r.Handle("/ws", a.WS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sourceParam aceita "ETH%2FUSD" ou "ETH-USD" para a fonte "ETH/USD"
func sourceParam(r *http.Request) string {
	raw := chi.URLParam(r, "source")
	s, err := url.PathUnescape(raw)
	if err != nil {
		s = raw
	}
	if !strings.Contains(s, "/") {
		s = strings.Replace(s, "-", "/", 1)
	}
	return strings.ToUpper(s)
}

func (a *API) listPrices(w http.ResponseWriter, r *http.Request) {
	list, err := a.ReadRepo.ListCurrent(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]dto.Price, 0, len(list))
	for _, u := range list {
		out = append(out, dto.FromUpdate(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// getPrice retorna o preço corrente, preferencialmente do cache
func (a *API) getPrice(w http.ResponseWriter, r *http.Request) {
	source := sourceParam(r)

	if a.Cache != nil {
		if u, ok, _ := a.Cache.GetCurrent(r.Context(), source); ok {
			writeJSON(w, http.StatusOK, dto.FromUpdate(u))
			return
		}
	}

	u, err := a.ReadRepo.GetCurrent(r.Context(), source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.FromUpdate(u))
}

func (a *API) getHistory(w http.ResponseWriter, r *http.Request) {
	source := sourceParam(r)
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	list, err := a.ReadRepo.History(r.Context(), source, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	out := make([]dto.Price, 0, len(list))
	for _, u := range list {
		out = append(out, dto.FromUpdate(u))
	}
	writeJSON(w, http.StatusOK, out)
}
