package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	nonDigits    = regexp.MustCompile(`\D`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// DigitsOnly strips everything but 0-9, as the backend stores CPF numbers
func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ValidateCPF validates a Brazilian individual taxpayer number (11 digits, two check digits)
func ValidateCPF(cpf string) error {
	digits := DigitsOnly(cpf)
	if len(digits) != 11 {
		return fmt.Errorf("CPF must have 11 digits: %s", cpf)
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return fmt.Errorf("CPF with repeated digits is not valid: %s", cpf)
	}

	for _, n := range []int{9, 10} {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(digits[i]-'0') * (n + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != int(digits[n]-'0') {
			return fmt.Errorf("CPF check digit mismatch: %s", cpf)
		}
	}
	return nil
}

// FormatCPF renders 11 digits as 000.000.000-00; other input is returned unchanged
func FormatCPF(cpf string) string {
	d := DigitsOnly(cpf)
	if len(d) != 11 {
		return cpf
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}

// ValidateDate validates a calendar date in YYYY-MM-DD form
func ValidateDate(value string) error {
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %s", value)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
