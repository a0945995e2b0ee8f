package routes

import (
	"bimbel_go/i18n"
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/services"
	"bimbel_go/services/session"
	"bimbel_go/services/websocket"
	"bimbel_go/utils"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testCookie = "bimbel_client"

type testServer struct {
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Admin{Email: "admin@bimbel.id", Password: hash, Name: "Admin", Active: true}).Error)

	store := session.NewMemoryStore()
	auth := services.NewAdminAuth(db, nil, store, "test-secret-key-0123456789", time.Hour)
	sessions := session.NewManager(store, auth.ClientProvider, session.GormStudents{DB: db}, time.Hour)
	t.Cleanup(sessions.Close)

	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	app := fiber.New()
	app.Use(middleware.ClientIdentity(testCookie))
	app.Use(middleware.Language(sessions, i18n.Indonesian))
	SetupRoutes(app, Deps{
		DB:          db,
		Sessions:    sessions,
		Auth:        auth,
		Activity:    services.NewActivityLogger(db, nil),
		Archive:     (&services.LogArchiveService{}).WithObjectStore(nil, ""),
		Health:      services.NewHealthService(db, nil, "test", services.HealthFlags{}),
		Hub:         hub,
		Location:    time.UTC,
		CountryCode: "62",
		AdminPhone:  "085555555684",
	})
	return &testServer{app: app, db: db}
}

// do sends a request as clientID and decodes the JSON body.
func (s *testServer) do(t *testing.T, clientID, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.ClientIDHeader, clientID)

	resp, err := s.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

// loginAdmin signs in from clientID and returns the ID issued by the login.
func (s *testServer) loginAdmin(t *testing.T, clientID string) string {
	t.Helper()
	code, body := s.do(t, clientID, http.MethodPost, "/api/auth/login", fiber.Map{
		"email": "admin@bimbel.id", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, code, body)
	next, _ := body["client_id"].(string)
	require.NotEmpty(t, next)
	require.NotEqual(t, clientID, next)
	return next
}

func TestAdminGuard(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, "anon-1", http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "/login", body["redirect"])

	code, _ = s.do(t, "anon-1", http.MethodPost, "/api/auth/login", fiber.Map{
		"email": "admin@bimbel.id", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	admin := s.loginAdmin(t, "admin-1")
	code, _ = s.do(t, "admin-1", http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code, "pre-login client ID must not carry the session")

	code, body = s.do(t, admin, http.MethodGet, "/api/auth/session", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", body["session"].(map[string]interface{})["role"])

	code, _ = s.do(t, admin, http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, admin, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, admin, http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestStudentCRUD(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAdmin(t, "admin-1")

	code, body := s.do(t, admin, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Belum ada data siswa", body["empty_message"])

	code, body = s.do(t, admin, http.MethodPost, "/api/students", fiber.Map{"grade_level": "SMP 8"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["errors"], "full_name")

	payload := fiber.Map{"full_name": "Budi", "email": "Budi@Example.com", "grade_level": "SMP 8", "date_of_birth": "2010-03-15"}
	code, body = s.do(t, admin, http.MethodPost, "/api/students", payload)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "Data berhasil disimpan", body["message"])
	created := body["student"].(map[string]interface{})
	assert.Equal(t, "budi@example.com", created["email"])
	assert.Equal(t, "Active", created["status"])

	code, _ = s.do(t, admin, http.MethodPost, "/api/students", payload)
	assert.Equal(t, http.StatusConflict, code)

	id := int(created["id"].(float64))
	path := "/api/students/" + strconv.Itoa(id)

	code, body = s.do(t, admin, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusPreconditionRequired, code)
	assert.Equal(t, "?confirm=true", body["confirm"])

	code, _ = s.do(t, admin, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, admin, http.MethodDelete, path+"?confirm=true", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, admin, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStudentUpdateKeepsStatusAndNeedsDOB(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAdmin(t, "admin-1")

	code, body := s.do(t, admin, http.MethodPost, "/api/students", fiber.Map{
		"full_name": "Sari", "email": "sari@example.com", "grade_level": "SMP 7",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["errors"], "date_of_birth")

	dob := models.NewDate(2011, time.July, 1)
	stu := models.Student{FullName: "Sari", DateOfBirth: &dob, GradeLevel: "SMP 7", Status: models.StudentStatusInactive}
	require.NoError(t, s.db.Create(&stu).Error)

	code, body = s.do(t, admin, http.MethodPut, "/api/students/"+strconv.Itoa(int(stu.ID)), fiber.Map{
		"full_name": "Sari Dewi", "grade_level": "SMP 8", "date_of_birth": "2011-07-01",
	})
	require.Equal(t, http.StatusOK, code, body)

	var got models.Student
	require.NoError(t, s.db.First(&got, stu.ID).Error)
	assert.Equal(t, "Sari Dewi", got.FullName)
	assert.Equal(t, models.StudentStatusInactive, got.Status)
}

func TestLoginCarriesLanguageToNewClientID(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "c-9", http.MethodPut, "/api/preferences/language", fiber.Map{"language": "en"})
	require.Equal(t, http.StatusOK, code)

	admin := s.loginAdmin(t, "c-9")
	code, body := s.do(t, admin, http.MethodGet, "/api/preferences/language", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "en", body["language"])
}

func TestAttendanceUpsertAndClear(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAdmin(t, "admin-1")

	student := models.Student{FullName: "Ayu", GradeLevel: "SMP 9", Status: models.StudentStatusActive}
	require.NoError(t, s.db.Create(&student).Error)

	mark := fiber.Map{"student_id": student.ID, "date": "2024-05-06", "status": "Present"}
	code, body := s.do(t, admin, http.MethodPut, "/api/attendance", mark)
	require.Equal(t, http.StatusOK, code, body)

	mark["status"] = "Sick"
	code, body = s.do(t, admin, http.MethodPut, "/api/attendance", mark)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Sick", body["attendance"].(map[string]interface{})["status"])

	var n int64
	require.NoError(t, s.db.Model(&models.Attendance{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	mark["status"] = "Late"
	code, _ = s.do(t, admin, http.MethodPut, "/api/attendance", mark)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, admin, http.MethodPut, "/api/attendance", fiber.Map{"student_id": 999, "date": "2024-05-06", "status": "Present"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "current")

	code, body = s.do(t, admin, http.MethodGet, "/api/attendance?date=2024-05-06", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["total"])

	code, _ = s.do(t, admin, http.MethodDelete, "/api/attendance?student_id="+strconv.Itoa(int(student.ID))+"&date=2024-05-06", nil)
	assert.Equal(t, http.StatusOK, code)
	require.NoError(t, s.db.Model(&models.Attendance{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)

	code, _ = s.do(t, admin, http.MethodGet, "/api/attendance/export?from=2024-05-10&to=2024-05-01", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestScheduleRejectsEndBeforeStart(t *testing.T) {
	s := newTestServer(t)
	admin := s.loginAdmin(t, "admin-1")

	body := fiber.Map{
		"subject": "Matematika", "teacher_name": "Pak Andi", "day_of_week": "Monday",
		"start_time": "10:00", "end_time": "09:00", "grade_level": "SMP 8",
	}
	code, _ := s.do(t, admin, http.MethodPost, "/api/schedules", body)
	assert.Equal(t, http.StatusBadRequest, code)

	body["end_time"] = "11:30"
	code, resp := s.do(t, admin, http.MethodPost, "/api/schedules", body)
	require.Equal(t, http.StatusCreated, code, resp)

	body["day_of_week"] = "Funday"
	code, _ = s.do(t, admin, http.MethodPost, "/api/schedules", body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStudentLoginAndPortal(t *testing.T) {
	s := newTestServer(t)

	email := "nadia@example.com"
	dob := models.NewDate(2008, time.November, 30)
	student := models.Student{FullName: "Nadia", Email: &email, DateOfBirth: &dob, GradeLevel: "SMA 10", Status: models.StudentStatusActive}
	require.NoError(t, s.db.Create(&student).Error)

	code, body := s.do(t, "kid-1", http.MethodPost, "/api/auth/student-login", fiber.Map{"email": email, "dob": "01012008"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Tanggal lahir salah (format: DDMMYYYY)", body["error"])

	code, _ = s.do(t, "kid-1", http.MethodPost, "/api/auth/student-login", fiber.Map{"email": "ghost@example.com", "dob": "30112008"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(t, "kid-1", http.MethodPost, "/api/auth/student-login", fiber.Map{"email": email, "dob": "30112008"})
	require.Equal(t, http.StatusOK, code, body)
	kid, _ := body["client_id"].(string)
	require.NotEmpty(t, kid)

	code, _ = s.do(t, "kid-1", http.MethodGet, "/api/student/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(t, kid, http.MethodGet, "/api/student/me", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Nadia", body["student"].(map[string]interface{})["full_name"])

	code, _ = s.do(t, kid, http.MethodGet, "/api/student/dashboard", nil)
	assert.Equal(t, http.StatusOK, code)

	// a student session is not an admin session
	code, _ = s.do(t, kid, http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// deactivation ends the portal session on the next request
	require.NoError(t, s.db.Model(&models.Student{}).Where("id = ?", student.ID).Update("status", models.StudentStatusInactive).Error)
	code, _ = s.do(t, kid, http.MethodGet, "/api/student/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLanguagePreference(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, "c-1", http.MethodPut, "/api/preferences/language", fiber.Map{"language": "fr"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Bahasa tidak didukung", body["error"])

	code, body = s.do(t, "c-1", http.MethodPut, "/api/preferences/language", fiber.Map{"language": "en"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Language updated", body["message"])

	code, body = s.do(t, "c-1", http.MethodGet, "/api/preferences/language", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "en", body["language"])

	code, body = s.do(t, "c-1", http.MethodGet, "/api/students", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, i18n.T(i18n.English, "unauthorized"), body["error"])

	code, body = s.do(t, "c-2", http.MethodGet, "/api/i18n/en", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Done for today!", body["translations"].(map[string]interface{})["no_upcoming"])
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Create(&models.Student{FullName: "A", GradeLevel: "SMP 7", Status: models.StudentStatusActive}).Error)
	require.NoError(t, s.db.Create(&models.Student{FullName: "B", GradeLevel: "SMP 7", Status: models.StudentStatusInactive}).Error)

	code, body := s.do(t, "p-1", http.MethodGet, "/api/public/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["active_students"])

	code, body = s.do(t, "p-1", http.MethodGet, "/api/public/contact?message=Halo", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://wa.me/6285555555684?text=Halo", body["url"])

	code, body = s.do(t, "p-1", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Bimbel API", body["service"])
}
