package seeders

import (
	"bimbel_go/models"
	"bimbel_go/utils"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestSeedAllIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	require.NoError(t, SeedAll(db))
	require.NoError(t, SeedAll(db))

	counts := map[string]int64{}
	for name, model := range map[string]interface{}{
		"admins":    &models.Admin{},
		"students":  &models.Student{},
		"schedules": &models.Schedule{},
		"grades":    &models.Grade{},
	} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		counts[name] = n
	}
	assert.Equal(t, int64(2), counts["admins"])
	assert.Equal(t, int64(4), counts["students"])
	assert.Equal(t, int64(4), counts["schedules"])
	assert.Equal(t, int64(6), counts["grades"])

	var admin models.Admin
	require.NoError(t, db.Where("email = ?", "admin@bimbel.id").First(&admin).Error)
	assert.NoError(t, utils.CheckPassword(DefaultAdminPassword, admin.Password))

	var budi models.Student
	require.NoError(t, db.Where("email = ?", "budi@example.com").First(&budi).Error)
	require.NotNil(t, budi.DateOfBirth)
	assert.Equal(t, "15032010", utils.DOBToLoginCode(*budi.DateOfBirth))
}
