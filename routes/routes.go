package routes

import (
	"bimbel_go/controllers"
	"bimbel_go/middleware"
	"bimbel_go/services"
	"bimbel_go/services/session"
	"bimbel_go/services/websocket"
	"bimbel_go/storage"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps carries everything the handlers need. Files may be nil when object
// storage is not configured.
type Deps struct {
	DB          *gorm.DB
	Sessions    *session.Manager
	Auth        *services.AdminAuth
	Activity    *services.ActivityLogger
	Archive     *services.LogArchiveService
	Health      *services.HealthService
	Hub         *websocket.Hub
	Files       storage.FileStorage
	Location    *time.Location
	CountryCode string
	AdminPhone  string
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, d Deps) {
	attendanceService := services.NewAttendanceService(d.DB)
	dashboardService := services.NewDashboardService(d.DB)
	exportService := services.NewExportService(d.DB)

	authController := controllers.NewAuthController(d.DB, d.Auth, d.Sessions, d.Activity)
	studentController := controllers.NewStudentController(d.DB, d.Files, d.CountryCode)
	gradeController := controllers.NewGradeController(d.DB, exportService, services.NewGradeImporter(d.DB))
	attendanceController := controllers.NewAttendanceController(attendanceService, exportService, d.Location)
	scheduleController := controllers.NewScheduleController(d.DB)
	dashboardController := controllers.NewDashboardController(dashboardService, d.Location, d.AdminPhone, d.CountryCode)
	portalController := controllers.NewPortalController(controllers.PortalDeps{
		DB:          d.DB,
		Dashboard:   dashboardService,
		Attendance:  attendanceService,
		Files:       d.Files,
		Sessions:    d.Sessions,
		Location:    d.Location,
		AdminPhone:  d.AdminPhone,
		CountryCode: d.CountryCode,
	})
	preferenceController := controllers.NewPreferenceController(d.Sessions)
	logController := controllers.NewLogController(d.Activity, d.Archive, d.Location)
	healthController := controllers.NewHealthController(d.Health)
	wsController := controllers.NewWebSocketController(d.Hub, d.Sessions)

	app.Get("/health", healthController.GetHealthStatus)
	app.Get("/metrics", middleware.MetricsHandler())

	// API group
	api := app.Group("/api")

	// Public routes (no authentication required)
	public := api.Group("/public")
	public.Get("/stats", dashboardController.PublicStats)
	public.Get("/contact", dashboardController.PublicContact)

	api.Get("/i18n/:lang", preferenceController.Dictionary)
	api.Get("/preferences/language", preferenceController.GetLanguage)
	api.Put("/preferences/language", preferenceController.SetLanguage)

	// Authentication routes (no guard)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Post("/student-login", authController.StudentLogin)
	auth.Post("/logout", authController.Logout)
	auth.Get("/session", authController.Session)

	// Student portal. The guard is per route so the group does not also
	// match /api/students.
	requireStudent := middleware.RequireStudent(d.Sessions)
	student := api.Group("/student")
	student.Get("/me", requireStudent, portalController.Me)
	student.Get("/dashboard", requireStudent, portalController.Dashboard)
	student.Get("/grades", requireStudent, portalController.Grades)
	student.Get("/attendance", requireStudent, portalController.Attendance)
	student.Get("/schedules", requireStudent, portalController.Schedules)
	student.Post("/photo", requireStudent, portalController.UploadPhoto)
	student.Get("/contact-admin", requireStudent, portalController.ContactAdmin)

	// Admin routes
	admin := api.Group("/", middleware.RequireAdmin(d.Sessions), middleware.LogActivityMiddleware(d.Activity))

	admin.Get("/dashboard/stats", dashboardController.Stats)

	students := admin.Group("/students")
	students.Get("/", studentController.GetStudents)
	students.Get("/:id", studentController.GetStudent)
	students.Get("/:id/whatsapp", studentController.GetWhatsAppLink)
	students.Post("/", studentController.CreateStudent)
	students.Put("/:id", studentController.UpdateStudent)
	students.Delete("/:id", studentController.DeleteStudent)

	grades := admin.Group("/grades")
	grades.Get("/", gradeController.GetGrades)
	grades.Get("/export", gradeController.ExportGrades)
	grades.Post("/import", gradeController.ImportGrades)
	grades.Get("/:id", gradeController.GetGrade)
	grades.Post("/", gradeController.CreateGrade)
	grades.Put("/:id", gradeController.UpdateGrade)
	grades.Delete("/:id", gradeController.DeleteGrade)

	attendance := admin.Group("/attendance")
	attendance.Get("/", attendanceController.GetAttendance)
	attendance.Get("/summary", attendanceController.GetSummary)
	attendance.Get("/export", attendanceController.ExportAttendance)
	attendance.Put("/", attendanceController.MarkAttendance)
	attendance.Delete("/", attendanceController.ClearAttendance)

	schedules := admin.Group("/schedules")
	schedules.Get("/", scheduleController.GetSchedules)
	schedules.Get("/:id", scheduleController.GetSchedule)
	schedules.Post("/", scheduleController.CreateSchedule)
	schedules.Put("/:id", scheduleController.UpdateSchedule)
	schedules.Delete("/:id", scheduleController.DeleteSchedule)

	logs := admin.Group("/logs")
	logs.Get("/", logController.GetLogs)
	logs.Get("/stats", logController.GetLogStats)
	logs.Post("/flush", logController.FlushLogs)
	logs.Post("/archive", logController.ArchiveLogs)
	logs.Get("/archives", logController.GetArchives)
	logs.Get("/archives/:id/download", logController.DownloadArchive)

	admin.Get("/ws/stats", wsController.GetWebSocketStats)

	// WebSocket connection endpoint
	app.Use("/ws", wsController.Upgrade)
	app.Get("/ws", wsController.WebSocketHandler())
}

// WireSessionPush forwards every resolver state change to the client's sockets.
func WireSessionPush(sessions *session.Manager, hub *websocket.Hub) {
	sessions.OnChange(func(clientID string, st session.State) {
		hub.SendToClient(clientID, websocket.Message{Type: "session", Data: st})
	})
}

// SetupStaticRoutes configures static file serving
func SetupStaticRoutes(app *fiber.App) {
	app.Static("/", "./public")
}
