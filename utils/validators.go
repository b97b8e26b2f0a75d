package utils

import (
	"regexp"
	"time"
)

// MinBirthYear is the earliest accepted birth year for a registration.
const MinBirthYear = 1925

var (
	emailRegex = regexp.MustCompile(`(?i)^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	phoneRegex = regexp.MustCompile(`^[+]?[-()\s\d]{7,20}$`)
)

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func IsValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// IsValidBirthYear accepts MinBirthYear through the current year of now.
func IsValidBirthYear(year int, now time.Time) bool {
	return year >= MinBirthYear && year <= now.Year()
}
