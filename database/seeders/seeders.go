package seeders

import (
	"bimbel_go/models"
	"bimbel_go/utils"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// DefaultAdminPassword is used for the seeded admin account.
const DefaultAdminPassword = "password123"

// SeedAll runs all seeders. Each one skips a table that already has rows.
func SeedAll(db *gorm.DB) error {
	log.Println("Starting database seeding...")

	steps := []struct {
		name string
		fn   func(*gorm.DB) error
	}{
		{"admins", SeedAdmins},
		{"students", SeedStudents},
		{"schedules", SeedSchedules},
		{"grades", SeedGrades},
	}
	for _, s := range steps {
		if err := s.fn(db); err != nil {
			return fmt.Errorf("seed %s: %w", s.name, err)
		}
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedAdmins seeds the admins table
func SeedAdmins(db *gorm.DB) error {
	var count int64
	db.Model(&models.Admin{}).Count(&count)
	if count > 0 {
		log.Println("Admins already seeded, skipping...")
		return nil
	}

	hashedPassword, err := utils.HashPassword(DefaultAdminPassword)
	if err != nil {
		return err
	}
	admins := []models.Admin{
		{Email: "admin@bimbel.id", Password: hashedPassword, Name: "Admin Bimbel", Active: true},
		{Email: "owner@bimbel.id", Password: hashedPassword, Name: "Pemilik", Active: true},
	}
	if err := db.Create(&admins).Error; err != nil {
		return err
	}
	log.Println("Admins seeded successfully")
	return nil
}

// SeedStudents seeds the students table
func SeedStudents(db *gorm.DB) error {
	var count int64
	db.Model(&models.Student{}).Count(&count)
	if count > 0 {
		log.Println("Students already seeded, skipping...")
		return nil
	}

	email := func(s string) *string { return &s }
	dob := func(y int, m time.Month, d int) *models.Date {
		v := models.NewDate(y, m, d)
		return &v
	}
	students := []models.Student{
		{
			FullName: "Budi Santoso", Email: email("budi@example.com"), Phone: "081234567890",
			DateOfBirth: dob(2010, time.March, 15), ParentName: "Siti Santoso", ParentPhone: "081298765432",
			Address: "Jl. Merdeka 10, Bandung", GradeLevel: "SMP 8", Branch: "Bandung", Status: models.StudentStatusActive,
		},
		{
			FullName: "Ayu Lestari", Email: email("ayu@example.com"), Phone: "082112345678",
			DateOfBirth: dob(2009, time.July, 2), ParentName: "Made Lestari", ParentPhone: "082187654321",
			Address: "Jl. Sudirman 5, Bandung", GradeLevel: "SMP 9", Branch: "Bandung", Status: models.StudentStatusActive,
		},
		{
			FullName: "Rizky Pratama", Email: email("rizky@example.com"), Phone: "085611112222",
			DateOfBirth: dob(2007, time.January, 20), ParentName: "Dewi Pratama", ParentPhone: "085633334444",
			Address: "Jl. Diponegoro 3, Cimahi", GradeLevel: "SMA 11", Branch: "Cimahi", Status: models.StudentStatusActive,
		},
		{
			FullName: "Nadia Putri", Email: email("nadia@example.com"),
			DateOfBirth: dob(2008, time.November, 30), ParentName: "Rina Putri", ParentPhone: "087855556666",
			GradeLevel: "SMA 10", Branch: "Cimahi", Status: models.StudentStatusInactive,
		},
	}
	if err := db.Create(&students).Error; err != nil {
		return err
	}
	log.Println("Students seeded successfully")
	return nil
}

// SeedSchedules seeds the weekly timetable
func SeedSchedules(db *gorm.DB) error {
	var count int64
	db.Model(&models.Schedule{}).Count(&count)
	if count > 0 {
		log.Println("Schedules already seeded, skipping...")
		return nil
	}

	schedules := []models.Schedule{
		{Subject: "Matematika", TeacherName: "Pak Andi", DayOfWeek: "Monday", StartTime: models.NewTod(15, 0, 0), EndTime: models.NewTod(16, 30, 0), Room: "R1", Branch: "Bandung", GradeLevel: "SMP 8"},
		{Subject: "IPA", TeacherName: "Bu Sari", DayOfWeek: "Wednesday", StartTime: models.NewTod(15, 0, 0), EndTime: models.NewTod(16, 30, 0), Room: "R2", Branch: "Bandung", GradeLevel: "SMP 8"},
		{Subject: "Bahasa Inggris", TeacherName: "Mr. Tom", DayOfWeek: "Tuesday", StartTime: models.NewTod(16, 0, 0), EndTime: models.NewTod(17, 30, 0), Room: "R1", GradeLevel: "SMP 9"},
		{Subject: "Fisika", TeacherName: "Pak Budi", DayOfWeek: "Thursday", StartTime: models.NewTod(18, 0, 0), EndTime: models.NewTod(19, 30, 0), Room: "Lab", Branch: "Cimahi", GradeLevel: "SMA 11"},
	}
	if err := db.Create(&schedules).Error; err != nil {
		return err
	}
	log.Println("Schedules seeded successfully")
	return nil
}

// SeedGrades seeds a few exam results for the first students
func SeedGrades(db *gorm.DB) error {
	var count int64
	db.Model(&models.Grade{}).Count(&count)
	if count > 0 {
		log.Println("Grades already seeded, skipping...")
		return nil
	}

	var students []models.Student
	if err := db.Where("status = ?", models.StudentStatusActive).Order("id asc").Limit(2).Find(&students).Error; err != nil {
		return err
	}
	if len(students) == 0 {
		log.Println("No active students, skipping grades...")
		return nil
	}

	var grades []models.Grade
	for _, s := range students {
		grades = append(grades,
			models.Grade{StudentID: s.ID, Subject: "Matematika", ExamType: "UTS", Score: 82, Date: models.NewDate(2024, time.March, 4)},
			models.Grade{StudentID: s.ID, Subject: "IPA", ExamType: "UTS", Score: 76, Date: models.NewDate(2024, time.March, 6)},
			models.Grade{StudentID: s.ID, Subject: "Matematika", ExamType: "Kuis", Score: 90, Date: models.NewDate(2024, time.April, 1)},
		)
	}
	if err := db.Create(&grades).Error; err != nil {
		return err
	}
	log.Println("Grades seeded successfully")
	return nil
}
