package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"
)

// Targets são as URLs base dos serviços expostos pelo gateway
type Targets struct {
	Escrow string
	Wallet string
	Price  string
}

func rp(to string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream error", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}
	return p, nil
}

// NewRouter monta o roteamento /api/* para os serviços, já com CORS
func NewRouter(t Targets, log *zap.Logger) (http.Handler, error) {
	escrow, err := rp(t.Escrow, log)
	if err != nil {
		return nil, err
	}
	wallet, err := rp(t.Wallet, log)
	if err != nil {
		return nil, err
	}
	price, err := rp(t.Price, log)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// escrows (ex.: /api/escrows/{id}/settle -> escrow-service /escrows/{id}/settle)
	mux.Handle("/api/escrows", http.StripPrefix("/api", escrow))
	mux.Handle("/api/escrows/", http.StripPrefix("/api", escrow))

	// wallet (ex.: /api/wallet/ledger -> wallet-service /wallet/ledger)
	mux.Handle("/api/wallet", http.StripPrefix("/api", wallet))
	mux.Handle("/api/wallet/", http.StripPrefix("/api", wallet))

	// preços (ex.: /api/prices/ETH-USD -> price-service /v1/prices/ETH-USD)
	mux.Handle("/api/prices", http.StripPrefix("/api", prefix("/v1", price)))
	mux.Handle("/api/prices/", http.StripPrefix("/api", prefix("/v1", price)))
	mux.Handle("/api/ws", http.StripPrefix("/api", price))

	return withCORS(mux), nil
}

// prefix acrescenta p ao caminho antes de repassar
func prefix(p string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r2 := r.Clone(r.Context())
		r2.URL.Path = p + r.URL.Path
		if r.URL.RawPath != "" {
			r2.URL.RawPath = p + r.URL.RawPath
		}
		h.ServeHTTP(w, r2)
	})
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
