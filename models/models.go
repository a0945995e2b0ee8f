package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

const (
	StudentStatusActive   = "Active"
	StudentStatusInactive = "Inactive"
)

const (
	AttendancePresent    = "Present"
	AttendancePermission = "Permission"
	AttendanceSick       = "Sick"
	AttendanceAlpha      = "Alpha"
)

// AttendanceStatuses lists the valid attendance states in display order.
var AttendanceStatuses = []string{AttendancePresent, AttendancePermission, AttendanceSick, AttendanceAlpha}

// Weekdays are indexed like time.Weekday.
var Weekdays = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// WeekdayName returns the schedule day name for a time.Weekday.
func WeekdayName(d time.Weekday) string {
	return Weekdays[int(d)]
}

// WeekdayIndex orders schedule days Monday first; unknown names sort last.
func WeekdayIndex(name string) int {
	for i, d := range Weekdays {
		if strings.EqualFold(d, name) {
			return (i + 6) % 7
		}
	}
	return len(Weekdays)
}

// Admin is a staff account signing in with email and password.
type Admin struct {
	BaseModel
	Email     string     `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password  string     `json:"-" gorm:"size:255;not null"`
	Name      string     `json:"name" gorm:"size:200"`
	Active    bool       `json:"active" gorm:"default:true"`
	LastLogin *time.Time `json:"last_login"`
}

// Student model
type Student struct {
	BaseModel
	FullName    string  `json:"full_name" gorm:"size:200;not null"`
	Email       *string `json:"email" gorm:"size:255;uniqueIndex"`
	Phone       string  `json:"phone" gorm:"size:20"`
	DateOfBirth *Date   `json:"date_of_birth" gorm:"type:varchar(10)"`
	ParentName  string  `json:"parent_name" gorm:"size:200"`
	ParentPhone string  `json:"parent_phone" gorm:"size:20"`
	Address     string  `json:"address" gorm:"size:500"`
	GradeLevel  string  `json:"grade_level" gorm:"size:50;not null;index"`
	Branch      string  `json:"branch" gorm:"size:100;index"`
	Status      string  `json:"status" gorm:"size:20;not null;default:'Active';index"`
	PhotoURL    string  `json:"photo_url" gorm:"size:500"`
}

// IsActive reports whether the student may use the portal.
func (s *Student) IsActive() bool {
	return s != nil && s.Status == StudentStatusActive
}

// EmailValue returns the email or "" when unset.
func (s *Student) EmailValue() string {
	if s == nil || s.Email == nil {
		return ""
	}
	return *s.Email
}

// StudentShort is the compact student view embedded in grade and attendance rows.
type StudentShort struct {
	ID         uint   `json:"id"`
	FullName   string `json:"full_name"`
	GradeLevel string `json:"grade_level"`
}

// Grade model
type Grade struct {
	BaseModel
	StudentID uint    `json:"student_id" gorm:"not null;index"`
	Subject   string  `json:"subject" gorm:"size:100;not null;index"`
	ExamType  string  `json:"exam_type" gorm:"size:100;not null"`
	Score     float64 `json:"score" gorm:"not null"`
	Date      Date    `json:"date" gorm:"type:varchar(10);not null;index"`

	// Relationships
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// Attendance is unique per (student, date).
type Attendance struct {
	BaseModel
	StudentID uint   `json:"student_id" gorm:"not null;uniqueIndex:idx_attendance_student_date"`
	Date      Date   `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_student_date;index"`
	Status    string `json:"status" gorm:"size:20;not null"`
	Notes     string `json:"notes" gorm:"type:text"`

	// Relationships
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// Schedule is a weekly class slot for a grade level.
type Schedule struct {
	BaseModel
	Subject     string `json:"subject" gorm:"size:100;not null"`
	TeacherName string `json:"teacher_name" gorm:"size:200;not null"`
	DayOfWeek   string `json:"day_of_week" gorm:"size:10;not null;index"`
	StartTime   Tod    `json:"start_time" gorm:"type:varchar(8);not null"`
	EndTime     Tod    `json:"end_time" gorm:"type:varchar(8);not null"`
	Room        string `json:"room" gorm:"size:100"`
	Branch      string `json:"branch" gorm:"size:100;index"`
	GradeLevel  string `json:"grade_level" gorm:"size:50;not null;index"`
}

// Log model for admin activity tracking
type ActivityLog struct {
	BaseModel
	AdminID    *uint  `json:"admin_id" gorm:"index"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	Admin *Admin `json:"admin,omitempty" gorm:"foreignKey:AdminID"`
}

// LogArchive model for tracking archived logs
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"` // pending, completed, failed
	Error       string    `json:"error" gorm:"type:text"`
}

// All lists the models handled by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Admin{},
		&Student{},
		&Grade{},
		&Attendance{},
		&Schedule{},
		&ActivityLog{},
		&LogArchive{},
	}
}
