package session

import (
	"bimbel_go/models"
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormStudents reads students from the database.
type GormStudents struct {
	DB *gorm.DB
}

func (g GormStudents) FetchStudent(ctx context.Context, id uint) (*models.Student, error) {
	var s models.Student
	if err := g.DB.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoStudent
		}
		return nil, fmt.Errorf("fetch student %d: %w", id, err)
	}
	return &s, nil
}
