// Package core provides the couple-finance domain: money arithmetic,
// couple lifecycle state, expense splitting, and goal progress.
//
// All amount math is fixed-point: cents as int64, percentages as basis
// points (hundredths of a percent). Rounding happens only where a division
// forces it, using half-to-even.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type (
	// Money is an amount in cents.
	Money struct {
		Cents int64
	}

	// Percent is a percentage in basis points: 10000 = 100.00%.
	Percent int64
)

// HundredPercent is 100.00% in basis points.
const HundredPercent Percent = 10000

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place. Both dot and comma separators are
// accepted. Negative and zero amounts are rejected.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParsePercent converts a decimal percentage string ("60", "12.5") to basis
// points. Values outside [0, 100] are rejected.
func ParsePercent(s string) (Percent, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidPercentage
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrInvalidPercentage
	}
	return PercentFromFloat(f)
}

// PercentFromFloat converts a percentage value (e.g. 60.5) to basis points,
// rounding half-up on the third decimal. Values outside [0, 100] are
// rejected.
func PercentFromFloat(f float64) (Percent, error) {
	if f < 0 || f > 100 {
		return 0, ErrInvalidPercentage
	}
	bps := int64(f*100 + 0.5)
	if bps > int64(HundredPercent) {
		bps = int64(HundredPercent)
	}
	return Percent(bps), nil
}

// Float64 returns the percentage as a plain value (10000 bps -> 100.0).
func (p Percent) Float64() float64 {
	return float64(p) / 100.0
}

func (p Percent) String() string {
	return strconv.FormatFloat(p.Float64(), 'f', 2, 64)
}

// Validate rejects non-positive amounts.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Float64 returns the major-unit value for display. Calculations stay in
// cents.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d", m.Cents/100, absInt64(m.Cents%100))
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// ApplyPercent returns the given fraction of m, rounded half-to-even.
func (m Money) ApplyPercent(p Percent) Money {
	return Money{Cents: divRoundHalfEven(m.Cents*int64(p), int64(HundredPercent))}
}

// Half returns m / 2 rounded half-to-even.
func (m Money) Half() Money {
	return Money{Cents: divRoundHalfEven(m.Cents, 2)}
}

// divRoundHalfEven divides num by den rounding ties to the nearest even
// quotient. den must be positive; num may be negative.
func divRoundHalfEven(num, den int64) int64 {
	neg := num < 0
	if neg {
		num = -num
	}
	q := num / den
	r := num % den
	switch {
	case 2*r > den:
		q++
	case 2*r == den && q%2 == 1:
		q++
	}
	if neg {
		return -q
	}
	return q
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
