package topics

const (
	// Preços
	PriceUpdates = "price_updates"

	// Escrows
	EscrowEvents = "escrow_events"

	// DLQs
	PriceUpdatesDLQ = "price_updates_dlq"
	EscrowEventsDLQ = "escrow_events_dlq"
)
