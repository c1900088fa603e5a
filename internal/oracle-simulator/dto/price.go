package dto

// SetPriceRequest fixa o preço de uma fonte (ex: forçar um movimento decisivo)
type SetPriceRequest struct {
	Source   string `json:"source"`
	Mantissa int64  `json:"mantissa"`
	Exponent *int32 `json:"exponent,omitempty"` // ausente = mantém o expoente atual
	Conf     uint64 `json:"conf,omitempty"`
}
