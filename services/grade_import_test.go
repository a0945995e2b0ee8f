package services

import (
	"bimbel_go/models"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeImportCSV(t *testing.T) {
	db := newTestDB(t)
	budi := seedStudent(t, db, "budi", "SMP 8", models.StudentStatusActive)
	ayu := seedStudent(t, db, "ayu", "SMP 8", models.StudentStatusActive)

	csvData := "\ufeffEmail,Subject,Exam_Type,Score,Date\n" +
		"BUDI@example.com,Matematika,UTS,80,2024-03-04\n" +
		"ayu@example.com,IPA,UTS,\"77,5\",06/03/2024\n" +
		"ghost@example.com,IPA,UTS,70,2024-03-06\n" +
		"budi@example.com,IPA,UTS,101,2024-03-06\n" +
		",,,,\n" +
		"budi@example.com,Matematika,UTS,88,2024-03-04\n"

	rows, err := ReadRows("nilai.csv", strings.NewReader(csvData))
	require.NoError(t, err)

	res, err := NewGradeImporter(db).Import(context.Background(), "nilai.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, 6, res.DataRows)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, res.Skipped)
	assert.Len(t, res.Errors, 2)

	var grades []models.Grade
	require.NoError(t, db.Order("id asc").Find(&grades).Error)
	require.Len(t, grades, 2)
	assert.Equal(t, budi.ID, grades[0].StudentID)
	assert.Equal(t, 88.0, grades[0].Score)
	assert.Equal(t, ayu.ID, grades[1].StudentID)
	assert.Equal(t, 77.5, grades[1].Score)
	assert.Equal(t, "2024-03-06", grades[1].Date.String())
}

func TestGradeImport(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	stu := seedStudent(t, db, "rina", "SMA 10", models.StudentStatusActive)

	csvData := strings.Join([]string{
		"Email,Subject,Exam Type,Score,Date",
		"rina@example.com,Math,UTS,80,2024-03-01",
		"rina@example.com,Math,UTS,85,2024-03-01",
		"rina@example.com,Kimia,UH,77.5,15/03/2024",
		"nobody@example.com,Math,UTS,90,2024-03-01",
		"rina@example.com,Math,UAS,150,2024-03-02",
	}, "\n")

	rows, err := ReadRows("nilai.csv", strings.NewReader(csvData))
	require.NoError(t, err)

	res, err := NewGradeImporter(db).Import(ctx, "nilai.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, 5, res.DataRows)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, res.Errors, 2)

	var grades []models.Grade
	require.NoError(t, db.Where("student_id = ?", stu.ID).Order("subject asc").Find(&grades).Error)
	require.Len(t, grades, 2)
	assert.Equal(t, "Kimia", grades[0].Subject)
	assert.Equal(t, "2024-03-15", grades[0].Date.String())
	assert.Equal(t, 85.0, grades[1].Score)
}

func TestGradeImportRejectsBadFiles(t *testing.T) {
	db := newTestDB(t)
	imp := NewGradeImporter(db)

	_, err := ReadRows("nilai.pdf", strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrUnsupportedImport))

	_, err = imp.Import(context.Background(), "empty.csv", nil)
	assert.True(t, errors.Is(err, ErrInvalidImport))

	_, err = imp.Import(context.Background(), "x.csv", [][]string{{"Email", "Subject", "Score", "Date"}})
	assert.True(t, errors.Is(err, ErrInvalidImport))

	_, err = imp.Import(context.Background(), "x.csv", [][]string{{"Name", "Subject", "Exam Type", "Score", "Date"}})
	assert.True(t, errors.Is(err, ErrInvalidImport))
}

func TestParseImportDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-04", "2024-03-04", true},
		{"04/03/2024", "2024-03-04", true},
		{"4/3/2024", "2024-03-04", true},
		{"45355", "2024-03-04", true},
		{"", "", false},
		{"kemarin", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseImportDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
