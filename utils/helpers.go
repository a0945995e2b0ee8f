package utils

import (
	"bimbel_go/models"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// IsValidStudentStatus checks if a student status is valid
func IsValidStudentStatus(status string) bool {
	return status == models.StudentStatusActive || status == models.StudentStatusInactive
}

// IsValidAttendanceStatus checks if an attendance status is valid
func IsValidAttendanceStatus(status string) bool {
	for _, s := range models.AttendanceStatuses {
		if status == s {
			return true
		}
	}
	return false
}

// IsValidWeekday checks a schedule day name (English, capitalized)
func IsValidWeekday(day string) bool {
	for _, d := range models.Weekdays {
		if day == d {
			return true
		}
	}
	return false
}

// IsValidFileExtension checks if file extension is allowed
func IsValidFileExtension(filename string, allowedExtensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowedExt := range allowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowedExt)) {
			return true
		}
	}
	return false
}

// SanitizeString removes null bytes and surrounding whitespace
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(SanitizeString(email))
}

// DOBToLoginCode renders a birth date as the DDMMYYYY code students type at login.
func DOBToLoginCode(d models.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02012006")
}

// ParseDOBLoginCode parses the DDMMYYYY code into a date.
func ParseDOBLoginCode(code string) (models.Date, error) {
	code = strings.TrimSpace(code)
	if len(code) != 8 {
		return models.Date{}, fmt.Errorf("date of birth must be 8 digits (DDMMYYYY)")
	}
	t, err := time.Parse("02012006", code)
	if err != nil {
		return models.Date{}, fmt.Errorf("invalid date of birth %q: %w", code, err)
	}
	return models.DateOf(t), nil
}
