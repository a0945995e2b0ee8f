package controllers

import (
	"bimbel_go/middleware"
	"bimbel_go/models"
	"bimbel_go/services"
	"bimbel_go/services/session"
	"bimbel_go/utils"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AuthController struct {
	db       *gorm.DB
	auth     *services.AdminAuth
	sessions *session.Manager
	activity middleware.ActivityRecorder
}

func NewAuthController(db *gorm.DB, auth *services.AdminAuth, sessions *session.Manager, activity middleware.ActivityRecorder) *AuthController {
	return &AuthController{db: db, auth: auth, sessions: sessions, activity: activity}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// StudentLoginRequest carries the date of birth as DDMMYYYY.
type StudentLoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	DOB   string `json:"dob" validate:"required"`
}

// Login signs in an admin with email and password.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.UserContext()
	prev := middleware.ClientID(c)
	clientID := middleware.NewClientID()
	sess, err := ac.auth.SignIn(ctx, clientID, req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		return errorJSON(c, fiber.StatusUnauthorized, "invalid_credentials")
	}
	if err != nil {
		logrus.WithError(err).Error("admin sign in failed")
		return errorJSON(c, fiber.StatusInternalServerError, "login_failed")
	}

	ac.rotate(c, prev, clientID)
	st := ac.resolve(c)
	middleware.SetState(c, st)
	middleware.LogActivity(c, ac.activity, "LOGIN", "auth", sess.AdminID, fiber.Map{"email": sess.Email})

	return c.JSON(fiber.Map{
		"message":   middleware.T(c, "welcome"),
		"admin":     sess,
		"session":   st,
		"client_id": clientID,
	})
}

// StudentLogin checks the student's email and date of birth, then
// switches the client to the student role.
func (ac *AuthController) StudentLogin(c *fiber.Ctx) error {
	var req StudentLoginRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.UserContext()
	var student models.Student
	err := ac.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(req.Email)).First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorJSON(c, fiber.StatusUnauthorized, "student_not_found")
	}
	if err != nil {
		logrus.WithError(err).Error("student lookup failed")
		return errorJSON(c, fiber.StatusInternalServerError, "login_failed")
	}
	if student.DateOfBirth == nil || student.DateOfBirth.IsZero() {
		return errorJSON(c, fiber.StatusUnauthorized, "dob_missing")
	}
	if strings.TrimSpace(req.DOB) != utils.DOBToLoginCode(*student.DateOfBirth) {
		return errorJSON(c, fiber.StatusUnauthorized, "dob_wrong")
	}
	if !student.IsActive() {
		return errorJSON(c, fiber.StatusForbidden, "student_inactive")
	}

	prev := middleware.ClientID(c)
	clientID := middleware.NewClientID()
	r := ac.sessions.Resolver(clientID)
	if err := r.LoginAsStudent(ctx, &student); err != nil {
		logrus.WithError(err).WithField("student_id", student.ID).Error("student login failed")
		return errorJSON(c, fiber.StatusInternalServerError, "login_failed")
	}
	ac.rotate(c, prev, clientID)

	return c.JSON(fiber.Map{
		"message":   middleware.T(c, "student_welcome"),
		"student":   student,
		"session":   r.State(),
		"client_id": clientID,
	})
}

// Logout ends whichever session the client holds.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	// resolve first so an admin token held by a fresh resolver is revoked too
	r, _ := ac.sessions.Resolve(c.UserContext(), middleware.ClientID(c))
	before := r.State()
	if err := r.Logout(c.UserContext()); err != nil {
		logrus.WithError(err).Error("logout failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	if before.IsAdmin() {
		middleware.SetState(c, before)
		middleware.LogActivity(c, ac.activity, "LOGOUT", "auth", before.Admin.AdminID, nil)
	}
	return c.JSON(fiber.Map{
		"message": middleware.T(c, "logout_success"),
		"session": r.State(),
	})
}

// Session reports the client's resolved role, or 202 while it is still loading.
func (ac *AuthController) Session(c *fiber.Ctx) error {
	st := ac.resolve(c)
	if !st.Resolved() {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"loading": true,
			"message": middleware.T(c, "loading"),
		})
	}
	return c.JSON(fiber.Map{"session": st})
}

// rotate moves the browser to next, carrying the language preference over
// and ending whatever session prev held.
func (ac *AuthController) rotate(c *fiber.Ctx, prev, next string) {
	middleware.AdoptClientID(c, next)
	if prev == "" || prev == next {
		return
	}

	ctx := c.UserContext()
	if lang, ok, err := ac.sessions.Store(prev).Get(ctx, session.LanguageKey); err == nil && ok {
		if err := ac.sessions.Store(next).Set(ctx, session.LanguageKey, lang, session.RecordTTL); err != nil {
			logrus.WithError(err).Warn("failed to carry language preference")
		}
	}
	old, _ := ac.sessions.Resolve(ctx, prev)
	if err := old.Logout(ctx); err != nil {
		logrus.WithError(err).WithField("client_id", prev).Warn("failed to end previous client session")
	}
}

func (ac *AuthController) resolve(c *fiber.Ctx) session.State {
	r, err := ac.sessions.Resolve(c.UserContext(), middleware.ClientID(c))
	if err != nil {
		logrus.WithError(err).Debug("session refresh interrupted")
	}
	return r.State()
}
