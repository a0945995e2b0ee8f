package utils

import (
	"bimbel_go/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDOBLoginCode(t *testing.T) {
	d, err := ParseDOBLoginCode("05032010")
	require.NoError(t, err)
	assert.Equal(t, models.NewDate(2010, time.March, 5), d)
	assert.Equal(t, "05032010", DOBToLoginCode(d))

	for _, bad := range []string{"", "5032010", "2010-03-05", "32132010"} {
		_, err := ParseDOBLoginCode(bad)
		assert.Error(t, err, bad)
	}
}

func TestIsValidFileExtension(t *testing.T) {
	allowed := []string{"jpg", "PNG", "webp"}
	assert.True(t, IsValidFileExtension("me.JPG", allowed))
	assert.True(t, IsValidFileExtension("me.png", allowed))
	assert.False(t, IsValidFileExtension("me.gif", allowed))
	assert.False(t, IsValidFileExtension("noext", allowed))
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, IsValidStudentStatus("Active"))
	assert.False(t, IsValidStudentStatus("active"))
	assert.True(t, IsValidAttendanceStatus("Sick"))
	assert.False(t, IsValidAttendanceStatus("Late"))
	assert.True(t, IsValidWeekday("Monday"))
	assert.False(t, IsValidWeekday("Mon"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("rahasia123")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword("rahasia123", hash))
	assert.Error(t, CheckPassword("salah", hash))
}

type validationSample struct {
	Status string      `json:"status" validate:"required,attendance_status"`
	Date   models.Date `json:"date" validate:"required"`
	Start  models.Tod  `json:"start_time" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	ok := validationSample{Status: "Present", Date: models.NewDate(2024, 1, 2), Start: models.NewTod(9, 0, 0)}
	assert.NoError(t, ValidateStruct(ok))

	err := ValidateStruct(validationSample{Status: "Late", Start: models.NewTod(9, 0, 0)})
	require.Error(t, err)
	details := ValidationErrors(err)
	assert.Equal(t, "attendance_status", details["status"])
	assert.Equal(t, "required", details["date"])
}
