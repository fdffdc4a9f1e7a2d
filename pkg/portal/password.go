package portal

import "unicode/utf8"

// Strength grades a password.
type Strength int

const (
	StrengthNone Strength = iota
	StrengthWeak
	StrengthMedium
	StrengthStrong
)

func (s Strength) String() string {
	switch s {
	case StrengthWeak:
		return "Weak"
	case StrengthMedium:
		return "Medium"
	case StrengthStrong:
		return "Strong"
	default:
		return ""
	}
}

// PasswordStrength scores pw out of six: one point each for a length of at
// least 8, a length of at least 12, a lower case ASCII letter, an upper case
// ASCII letter, a digit and any other character. Up to 2 is weak, up to 4 is
// medium.
func PasswordStrength(pw string) Strength {
	if pw == "" {
		return StrengthNone
	}

	score := 0
	n := utf8.RuneCountInString(pw)
	if n >= 8 {
		score++
	}
	if n >= 12 {
		score++
	}

	var lower, upper, digit, other bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			score++
		}
	}

	switch {
	case score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthMedium
	default:
		return StrengthStrong
	}
}
