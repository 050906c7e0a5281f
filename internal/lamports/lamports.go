// Package lamports provides integer base-unit arithmetic. Floating
// point appears only at the configuration and display edges; all core
// amounts are int64/uint64 lamports.
package lamports

import (
	"fmt"
	"strconv"
	"strings"
)

// SOLDecimals is the native mint's decimal count.
const SOLDecimals = 9

// PerSOL is lamports per SOL.
const PerSOL = 1_000_000_000

// FromUI converts a UI SOL amount to lamports. Config/display use only.
func FromUI(sol float64) uint64 {
	return uint64(sol * PerSOL)
}

// ToUI converts lamports to a UI SOL amount. Display use only.
func ToUI(lamports uint64) float64 {
	return float64(lamports) / PerSOL
}

// FormatSOL renders a signed lamport amount as a trimmed decimal SOL
// string, without floating point.
func FormatSOL(lamports int64) string {
	neg := lamports < 0
	v := uint64(lamports)
	if neg {
		// Negation wraps for MinInt64, but the uint64 conversion of the
		// wrapped value is still the correct magnitude (1 << 63).
		v = uint64(-lamports)
	}

	whole := v / PerSOL
	frac := v % PerSOL

	s := strconv.FormatUint(whole, 10)
	if frac > 0 {
		fracStr := fmt.Sprintf("%09d", frac)
		fracStr = strings.TrimRight(fracStr, "0")
		s += "." + fracStr
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ParseFractionBps parses a decimal ratio string into basis points
// without floating point. The aggregator reports price impact as a
// fraction of one ("0.0042" is 0.42%, 42 bps) despite the field's Pct
// name. Fractional digits beyond the fourth are truncated.
func ParseFractionBps(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty fraction string")
	}

	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fraction %q: %w", s, err)
	}

	// Four fractional digits of a ratio map exactly onto basis points.
	var f int64
	for i := 0; i < 4; i++ {
		f *= 10
		if i < len(frac) {
			d := frac[i]
			if d < '0' || d > '9' {
				return 0, fmt.Errorf("parse fraction %q: bad digit %q", s, d)
			}
			f += int64(d - '0')
		}
	}
	for i := 4; i < len(frac); i++ {
		if frac[i] < '0' || frac[i] > '9' {
			return 0, fmt.Errorf("parse fraction %q: bad digit %q", s, frac[i])
		}
	}

	bps := w*10_000 + f
	if neg {
		bps = -bps
	}
	return bps, nil
}

// ParseUint parses a decimal base-unit amount string.
func ParseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
