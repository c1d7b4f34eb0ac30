package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewNumericCode returns a uniformly random decimal code of exactly digits
// digits (no leading zero), e.g. 100000-999999 for digits=6.
func NewNumericCode(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("numeric code: unsupported length %d", digits)
	}
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits-1)), nil)
	span := new(big.Int).Mul(lo, big.NewInt(9))
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("numeric code: %w", err)
	}
	return n.Add(n, lo).String(), nil
}
