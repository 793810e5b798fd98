package projection

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"donationledger/internal/domain"
)

// DefaultDecimals is the number of decimal places between the display unit
// and the ledger base unit (ether and wei).
const DefaultDecimals = 18

// maxIntegerDigits is the number of digits in the largest uint256.
const maxIntegerDigits = 78

// plainDecimal accepts digits with an optional fraction. Exponent notation is
// rejected so the size of the parsed value is bounded by the text length.
var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseUnits converts a decimal amount such as "1.5" into base units. Values
// that are malformed, not positive, or finer than one base unit are rejected
// with ErrInvalidAmount.
func ParseUnits(text string, decimals int) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty amount: %w", domain.ErrInvalidAmount)
	}
	if !plainDecimal.MatchString(text) {
		return nil, fmt.Errorf("amount %q is not a plain decimal: %w", text, domain.ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(text, ".")
	if len(strings.TrimLeft(whole, "0")) > maxIntegerDigits {
		return nil, fmt.Errorf("amount %q is too large: %w", text, domain.ErrInvalidAmount)
	}
	if len(strings.TrimRight(frac, "0")) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals: %w", text, decimals, domain.ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", text, domain.ErrInvalidAmount)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive: %w", text, domain.ErrInvalidAmount)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals: %w", text, decimals, domain.ErrInvalidAmount)
	}
	v := shifted.BigInt()
	if v.BitLen() > 256 {
		return nil, fmt.Errorf("amount %q exceeds 256 bits: %w", text, domain.ErrInvalidAmount)
	}
	return v, nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}
