package auth

import "regexp"

// Mainland mobile numbers: 11 digits, 1 then 3-9.
var phoneRegex = regexp.MustCompile(`^1[3-9]\d{9}$`)

// ValidatePhone checks if a phone number is a well-formed 11-digit mobile number.
func ValidatePhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}
