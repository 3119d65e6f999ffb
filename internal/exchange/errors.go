package exchange

import (
	"errors"
	"fmt"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/repository"
	"github.com/nu7hatch/gouuid"
)

var (
	ErrInvalidPrice = errors.New("price must be > 0")
	ErrFeeTooHigh   = errors.New("sale fee cannot be more than 5%")

	ErrNotOwner      = errors.New("you are not token owner")
	ErrNotApproved   = errors.New("token not approved")
	ErrNotSeller     = errors.New("you are not token seller")
	ErrNotAuthorized = errors.New("caller is not the owner")

	ErrDuplicateListing    = repository.ErrDuplicateListing
	ErrNoSuchListing       = errors.New("listing doesnt exist")
	ErrSelfPurchase        = errors.New("you cant buy your own token")
	ErrInsufficientPayment = errors.New("value not enough")
)

type ErrorCategory string

const (
	ValidationError    ErrorCategory = "validation"
	AuthorizationError ErrorCategory = "authorization"
	StateError         ErrorCategory = "state"
	CollaboratorError  ErrorCategory = "collaborator"
	InternalError      ErrorCategory = "internal"
)

var categories = map[error]ErrorCategory{
	ErrInvalidPrice:        ValidationError,
	ErrFeeTooHigh:          ValidationError,
	ErrNotOwner:            AuthorizationError,
	ErrNotApproved:         AuthorizationError,
	ErrNotSeller:           AuthorizationError,
	ErrNotAuthorized:       AuthorizationError,
	ErrDuplicateListing:    StateError,
	ErrNoSuchListing:       StateError,
	ErrSelfPurchase:        StateError,
	ErrInsufficientPayment: StateError,
}

// Category classifies err. Collaborator failures take precedence over any
// sentinel they wrap.
func Category(err error) ErrorCategory {
	var settlementErr *SettlementError
	if errors.As(err, &settlementErr) {
		return CollaboratorError
	}

	for sentinel, category := range categories {
		if errors.Is(err, sentinel) {
			return category
		}
	}

	return InternalError
}

// SettlementError reports a custody or value transfer that failed mid
// operation. The operation has been rolled back when it is returned.
type SettlementError struct {
	ID    string
	Op    string
	Stage string
	Err   error
}

func newSettlementError(op, stage string, err error) *SettlementError {
	u, _ := uuid.NewV4()

	return &SettlementError{ID: u.String(), Op: op, Stage: stage, Err: err}
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("%s failed at %s (incident %s): %v", e.Op, e.Stage, e.ID, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
