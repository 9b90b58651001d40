package musicmarket

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// decimalPattern is the accepted price grammar: digits with an optional fraction
var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ParseEther converts a decimal ether amount such as "0.5" into wei.
// Empty, zero, negative and sub-wei amounts are rejected with ErrInvalidPrice.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}

	if !decimalPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidPrice, s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidPrice, s)
	}
	if r.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidPrice, s)
	}

	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %q has more than 18 decimals", ErrInvalidPrice, s)
	}
	return new(big.Int).Set(r.Num()), nil
}

// FormatEther renders a wei amount as a decimal ether string without trailing zeros
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	r := new(big.Rat).SetFrac(wei, weiPerEther)
	s := r.FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
