package ledger

import "errors"

var (
	ErrInvalidOrder       = errors.New("invalid order")
	ErrInvalidUser        = errors.New("invalid user identity")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrAccountNotFound    = errors.New("account not found")
	// ErrPersistence means a storage write failed and the whole order was rolled back.
	ErrPersistence = errors.New("persistence failure")
)

// isRejection reports whether err is an order outcome decided by the ledger itself.
func isRejection(err error) bool {
	for _, target := range []error{ErrInvalidOrder, ErrInvalidUser, ErrInsufficientFunds, ErrInsufficientShares, ErrAccountNotFound, ErrPersistence} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
