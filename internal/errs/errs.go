package errs

import "errors"

// Sentinel errors for the card service. Callers match with errors.Is; the
// HTTP layer maps each one to a status code. Messages wrapped around these
// must never contain a raw card number.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrInvalidCardNumber  = errors.New("invalid card number")
	ErrInvalidTransfer    = errors.New("invalid transfer")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrForbidden          = errors.New("operation forbidden")
	ErrCrypto             = errors.New("card number encryption failed")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrBusy               = errors.New("resource busy, retry later")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
