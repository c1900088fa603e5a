package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/radieske/price-escrow-platform/internal/settlement-keeper/dto"
)

// APIError é uma resposta não-2xx do escrow-service
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("escrow-service %d %s: %s", e.Status, e.Code, e.Msg)
}

// Client chama o escrow-service em nome do keeper
type Client struct {
	BaseURL  string
	CallerID string // enviado em X-User-Id
	HTTP     *http.Client
	Retries  int // novas tentativas em falha de transporte ou 5xx sem código
}

func New(baseURL, callerID string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		CallerID: callerID,
		HTTP:     &http.Client{Timeout: 5 * time.Second},
		Retries:  3,
	}
}

// Settle chama POST /escrows/{id}/settle
func (c *Client) Settle(ctx context.Context, escrowID string) (*dto.SettleResponse, error) {
	var (
		out *dto.SettleResponse
		err error
	)
	for i := 0; i <= c.Retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(300*i) * time.Millisecond):
			}
		}
		out, err = c.settleOnce(ctx, escrowID)
		if !retryable(err) {
			return out, err
		}
	}
	return nil, err
}

func (c *Client) settleOnce(ctx context.Context, escrowID string) (*dto.SettleResponse, error) {
	u := c.BaseURL + "/escrows/" + url.PathEscape(escrowID) + "/settle"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-Id", c.CallerID)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, &APIError{Status: resp.StatusCode, Code: e.Code, Msg: e.Error}
	}
	var out dto.SettleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// retryable: erro de transporte ou 5xx sem código do engine
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var e *APIError
	if errors.As(err, &e) {
		return e.Status >= 500 && e.Code == ""
	}
	return true
}
