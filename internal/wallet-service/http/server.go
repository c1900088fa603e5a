package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/wallet-service/dto"
	"github.com/radieske/price-escrow-platform/internal/wallet-service/repo"
	"github.com/radieske/price-escrow-platform/pkg/contracts/events"
)

const (
	defaultLedgerLimit = 50
	maxLedgerLimit     = 500
)

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error)
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error)
	Ledger(ctx context.Context, userID string, limit int) ([]repo.Entry, error)
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log  *zap.Logger
	repo Repo

	OnDeposit func(amount int64) // métricas
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

// Router retorna o mux HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wallet", s.getWallet)       // GET ?userId=...
	mux.HandleFunc("/wallet/deposit", s.deposit) // POST
	mux.HandleFunc("/wallet/ledger", s.ledger)   // GET ?userId=...&limit=...
	return mux
}

// getWallet retorna (ou cria) a carteira e saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.log.Error("get wallet", zap.String("userId", userID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.WalletResponse{UserID: userID, WalletID: walletID, BalanceCents: bal})
}

// deposit adiciona saldo à carteira do usuário
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.AmountCents <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	// contas de custódia só se movem pelo escrow-service
	if events.IsCustodyAccount(req.UserID) {
		http.Error(w, "userId reserved for escrow custody", http.StatusBadRequest)
		return
	}
	walletID, bal, err := s.repo.Deposit(r.Context(), req.UserID, req.AmountCents, req.ExternalRef)
	if err != nil {
		s.log.Error("deposit", zap.String("userId", req.UserID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.OnDeposit != nil {
		s.OnDeposit(req.AmountCents)
	}
	s.log.Info("deposit", zap.String("userId", req.UserID), zap.Int64("amount_cents", req.AmountCents), zap.Int64("balance_cents", bal))
	writeJSON(w, dto.WalletResponse{UserID: req.UserID, WalletID: walletID, BalanceCents: bal})
}

// ledger lista os lançamentos da carteira (depósitos e movimentos de custódia)
func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId required", http.StatusBadRequest)
		return
	}
	limit := defaultLedgerLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLedgerLimit)
	}

	entries, err := s.repo.Ledger(r.Context(), userID, limit)
	if errors.Is(err, repo.ErrNotFound) {
		http.Error(w, "wallet not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("ledger", zap.String("userId", userID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := dto.LedgerResponse{UserID: userID, Entries: make([]dto.LedgerEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, dto.LedgerEntry{
			ID:          e.ID,
			Operation:   e.Operation,
			AmountCents: e.AmountCents,
			Description: e.Description,
			EscrowID:    e.EscrowID,
			CreatedAt:   e.CreatedAt,
		})
	}
	writeJSON(w, out)
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
