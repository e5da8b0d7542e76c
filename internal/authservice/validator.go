package authservice

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/classpoint/gatehouse/pkg/errors"
)

var (
	// Email validation regex (RFC 5322 simplified)
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	minPasswordLength = 8
)

// IsValidEmail checks if an email address is valid
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// SanitizeEmail normalizes an email address
func SanitizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(message string) error {
	return apperrors.Business(400, apperrors.ErrCodeValidationFailed, message)
}

func validateLogin(email, password string) error {
	if email == "" {
		return validationError("Email is required")
	}
	if !IsValidEmail(email) {
		return validationError("Email format is invalid")
	}
	if password == "" {
		return validationError("Password is required")
	}
	return nil
}

func validateRegister(req RegisterRequest) error {
	if err := validateLogin(req.Email, req.Password); err != nil {
		return err
	}
	if len(req.Password) < minPasswordLength {
		return validationError(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if !req.Role.Valid() {
		return apperrors.Business(400, apperrors.ErrCodeInvalidRole, fmt.Sprintf("Unknown role %q", req.Role))
	}
	return nil
}
