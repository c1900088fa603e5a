package dto

// SettleResponse é o subconjunto da resposta do escrow-service usado pelo keeper
type SettleResponse struct {
	Escrow struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"escrow"`
	Winner      string `json:"winner"`
	Payout      int64  `json:"payout"`
	MovePercent string `json:"move_percent"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
