package domain

import "math/big"

// CopyAmount returns an independent copy of a. A nil amount stays nil.
func CopyAmount(a *big.Int) *big.Int {
	if a == nil {
		return nil
	}
	return new(big.Int).Set(a)
}

// IsPositive reports whether a is a non-nil amount greater than zero.
func IsPositive(a *big.Int) bool {
	return a != nil && a.Sign() > 0
}

func amountOrZero(a *big.Int) *big.Int {
	if a == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a)
}
