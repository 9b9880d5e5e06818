package cardnum

import (
	"fmt"

	"github.com/bankcards/card-service/internal/errs"
)

const maskPrefix = "**** **** **** "

// Mask renders a raw card number for display, revealing only the last four
// digits. The input must be 13 to 19 digits. Masking a raw number needs no
// key material.
func Mask(number string) (string, error) {
	if len(number) < 13 || len(number) > 19 {
		return "", fmt.Errorf("%w: number must be 13-19 digits", errs.ErrInvalidCardNumber)
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return "", fmt.Errorf("%w: number must contain digits only", errs.ErrInvalidCardNumber)
		}
	}
	return maskPrefix + number[len(number)-4:], nil
}
