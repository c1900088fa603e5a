package engine

import "errors"

// Kind classifica a falha de uma transição. Nenhuma é repetida internamente.
type Kind uint8

const (
	KindPrecondition Kind = iota + 1
	KindAuthorization
	KindPolicy
	KindResource
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "PreconditionViolation"
	case KindAuthorization:
		return "AuthorizationViolation"
	case KindPolicy:
		return "PolicyViolation"
	case KindResource:
		return "ResourceViolation"
	case KindDependency:
		return "DependencyFailure"
	default:
		return "Unknown"
	}
}

// Error carrega o código estável e a mensagem literal que clientes usam para casar a falha.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is compara pelo código, permitindo errors.Is contra o sentinela mesmo após wrap
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code, msg string) *Error { return &Error{Kind: kind, Code: code, Msg: msg} }

var (
	// PreconditionViolation
	ErrGameNotFundable     = newError(KindPrecondition, "GameNotFundable", "Escrow deal not available")
	ErrGameNotJoinable     = newError(KindPrecondition, "GameNotJoinable", "Escrow deal not available")
	ErrGameNotSettleable   = newError(KindPrecondition, "GameNotSettleable", "Not accepted escrow")
	ErrGameNotWithdrawable = newError(KindPrecondition, "GameNotWithdrawable", "Escrow deal not available")
	ErrInvalidEntryFee     = newError(KindPrecondition, "InvalidEntryFee", "Entry fee must be positive")
	ErrInvalidCaller       = newError(KindPrecondition, "InvalidCaller", "Caller identity required")

	// AuthorizationViolation
	ErrNotCreator          = newError(KindAuthorization, "NotCreator", "Not creator of escrow")
	ErrCreatorCannotAccept = newError(KindAuthorization, "CreatorCannotAccept", "Creator cannot accept own escrow")
	ErrNotParticipant      = newError(KindAuthorization, "NotParticipant", "Not participant in the escrow")

	// PolicyViolation
	ErrPriceDriftTooLarge = newError(KindPolicy, "PriceDriftTooLarge", "Cannot join game")
	ErrNoDecisiveMove     = newError(KindPolicy, "NoDecisiveMove", "No escrow winner yet")

	// ResourceViolation
	ErrInsufficientBalance = newError(KindResource, "InsufficientBalance", "insufficient funds")
	ErrDuplicateID         = newError(KindResource, "DuplicateId", "Escrow already exists")
	ErrNotFound            = newError(KindResource, "NotFound", "Account does not exist")
	ErrBusy                = newError(KindResource, "Busy", "Escrow is busy, retry the request")

	// DependencyFailure
	ErrFeedUnavailable = newError(KindDependency, "FeedUnavailable", "Price feed unavailable")
	ErrInvalidPrice    = newError(KindDependency, "InvalidPrice", "Price feed returned an invalid price")
)

// KindOf devolve a classe da falha, ou zero quando o erro não é do engine
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf devolve o código estável da falha, ou "Internal" para erros de infraestrutura
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "Internal"
}
