package dto

// OpenEscrowRequest abre um escrow; o criador vem do header X-User-Id
type OpenEscrowRequest struct {
	Seed        uint64 `json:"seed"`
	EntryFee    int64  `json:"entry_fee"`
	PriceSource string `json:"price_source,omitempty"` // default: fonte configurada
}

// FundEscrowRequest define a direção: true = criador ganha se o preço subir
type FundEscrowRequest struct {
	Direction bool `json:"direction"`
}
