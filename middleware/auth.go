package middleware

import (
	"bimbel_go/models"
	"bimbel_go/services/session"
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	sessionLocal = "session"
	LoginPath    = "/login"
)

// SessionSource resolves the role state for a client.
type SessionSource interface {
	Resolve(ctx context.Context, clientID string) (*session.Resolver, error)
}

// RequireAdmin lets only admin sessions through.
func RequireAdmin(sessions SessionSource) fiber.Handler {
	return requireRole(sessions, session.RoleAdmin)
}

// RequireStudent lets only student sessions through.
func RequireStudent(sessions SessionSource) fiber.Handler {
	return requireRole(sessions, session.RoleStudent)
}

// requireRole answers 202 while the role is still loading and 401 with a
// login redirect when it resolved to anything else.
func requireRole(sessions SessionSource, want session.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := sessions.Resolve(c.UserContext(), ClientID(c))
		if err != nil {
			logrus.WithError(err).WithField("client_id", ClientID(c)).Debug("Session still resolving")
		}
		st := session.State{Role: session.RoleLoading}
		if r != nil {
			st = r.State()
		}

		if !st.Resolved() {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"loading": true,
				"message": T(c, "loading"),
			})
		}
		if st.Role != want {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":    T(c, "unauthorized"),
				"redirect": LoginPath,
			})
		}

		c.Locals(sessionLocal, st)
		return c.Next()
	}
}

// SetState stores st for handlers outside a guard, such as login.
func SetState(c *fiber.Ctx, st session.State) {
	c.Locals(sessionLocal, st)
}

// CurrentState returns the state stored by a guard, or Anonymous.
func CurrentState(c *fiber.Ctx) session.State {
	if st, ok := c.Locals(sessionLocal).(session.State); ok {
		return st
	}
	return session.State{Role: session.RoleAnonymous}
}

// CurrentAdmin returns the signed-in admin, or nil.
func CurrentAdmin(c *fiber.Ctx) *session.AdminSession {
	return CurrentState(c).Admin
}

// CurrentStudent returns the signed-in student, or nil.
func CurrentStudent(c *fiber.Ctx) *models.Student {
	return CurrentState(c).Student
}
