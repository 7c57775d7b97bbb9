package ratelimit

import (
	"fmt"
	"strings"
)

// ParseResetDuration parses a reset duration as advertised by the
// x-ratelimit-reset-* headers and returns it in milliseconds.
//
// Accepted forms are a bare millisecond count ("500ms") and a composed
// form with optional day, hour, minute, second and millisecond segments
// in that order ("1h", "6m0s", "2m30s", "1s200ms"). Seconds may carry a
// fractional part of up to three digits ("2.5s", "59.903s").
func ParseResetDuration(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total int64
	rank := 0 // last seen unit; segments must appear in order
	rest := s

	for rest != "" {
		pos := 0
		for pos < len(rest) && rest[pos] >= '0' && rest[pos] <= '9' {
			pos++
		}
		if pos == 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}

		var value int64
		for _, c := range rest[:pos] {
			value = value*10 + int64(c-'0')
		}
		rest = rest[pos:]

		// fractional seconds
		var frac int64 = -1
		fracDigits := 0
		if strings.HasPrefix(rest, ".") {
			rest = rest[1:]
			for fracDigits < len(rest) && rest[fracDigits] >= '0' && rest[fracDigits] <= '9' {
				fracDigits++
			}
			if fracDigits == 0 || fracDigits > 3 {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			frac = 0
			for _, c := range rest[:fracDigits] {
				frac = frac*10 + int64(c-'0')
			}
			rest = rest[fracDigits:]
		}

		unit, ms, unitRank, err := splitUnit(rest)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		if unitRank <= rank {
			return 0, fmt.Errorf("invalid duration %q: unit order", s)
		}
		if frac >= 0 && unit != "s" {
			return 0, fmt.Errorf("invalid duration %q: fraction outside seconds", s)
		}
		rank = unitRank
		rest = rest[len(unit):]

		total += value * ms
		if frac >= 0 {
			// 1-digit fractions are tenths, 2-digit hundredths, 3-digit
			// milliseconds; values of 100 and above pass through unscaled.
			if frac < 100 {
				switch fracDigits {
				case 1:
					frac *= 100
				case 2:
					frac *= 10
				}
			}
			total += frac
		}
	}

	if total <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}

	return total, nil
}

// splitUnit identifies the unit at the start of rest and returns its
// literal, its millisecond multiplier and its ordering rank.
func splitUnit(rest string) (string, int64, int, error) {
	switch {
	case strings.HasPrefix(rest, "ms"):
		return "ms", 1, 5, nil
	case strings.HasPrefix(rest, "d"):
		return "d", 24 * 60 * 60 * 1000, 1, nil
	case strings.HasPrefix(rest, "h"):
		return "h", 60 * 60 * 1000, 2, nil
	case strings.HasPrefix(rest, "m"):
		return "m", 60 * 1000, 3, nil
	case strings.HasPrefix(rest, "s"):
		return "s", 1000, 4, nil
	}
	return "", 0, 0, fmt.Errorf("unknown unit")
}

// FormatResetDuration renders a millisecond count in a form accepted by
// ParseResetDuration: whole seconds as "<N>s", anything else as "<N>ms".
func FormatResetDuration(ms int64) string {
	if ms > 0 && ms%1000 == 0 {
		return fmt.Sprintf("%ds", ms/1000)
	}
	return fmt.Sprintf("%dms", ms)
}
