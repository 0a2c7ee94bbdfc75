package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kelsos/wallet-session/internal/errno"
)

// EtherDecimals is the atomic-unit scale of the reference ledger (wei per ether)
const EtherDecimals = 18

// Converter converts between display amounts and atomic ledger units
type Converter struct {
	decimals int32
}

// NewConverter creates a converter for a ledger with the given number of fractional digits
func NewConverter(decimals uint8) *Converter {
	return &Converter{decimals: int32(decimals)}
}

// Decimals returns the number of fractional digits of the display denomination
func (c *Converter) Decimals() int {
	return int(c.decimals)
}

// ToAtomic parses a display amount such as "1.5" into atomic units
func (c *Converter) ToAtomic(display string) (*big.Int, error) {
	s := strings.TrimSpace(display)
	if err := c.checkSyntax(s); err != nil {
		return nil, errno.Wrap(errno.InvalidAmount, err)
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errno.Wrap(errno.InvalidAmount, err)
	}

	return d.Shift(c.decimals).BigInt(), nil
}

// ToDisplay renders atomic units in the display denomination with trailing zeros trimmed
func (c *Converter) ToDisplay(atomic *big.Int) string {
	if atomic == nil {
		return "0"
	}
	return decimal.NewFromBigInt(atomic, -c.decimals).String()
}

// checkSyntax accepts plain non-negative decimals only: no sign, exponent or
// grouping, and no significant digits beyond the atomic precision.
func (c *Converter) checkSyntax(s string) error {
	if s == "" {
		return fmt.Errorf("empty amount")
	}

	whole, frac, hasPoint := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return fmt.Errorf("amount %q has no digits", s)
	}
	if hasPoint && frac == "" {
		return fmt.Errorf("amount %q has no digits after the decimal point", s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return fmt.Errorf("amount %q is not a non-negative decimal number", s)
	}

	significant := strings.TrimRight(frac, "0")
	if len(significant) > int(c.decimals) {
		return fmt.Errorf("amount %q has more than %d fractional digits", s, c.decimals)
	}

	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
