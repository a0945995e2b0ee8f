package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	ClientIDHeader = "X-Client-ID"
	clientIDLocal  = "client_id"
	cookieLocal    = "client_cookie"
	maxClientIDLen = 64
)

// ClientIdentity assigns every browser a stable client ID. The ID is read
// from the X-Client-ID header or the cookie, and a new one is issued otherwise.
func ClientIdentity(cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(ClientIDHeader)
		if !validClientID(id) {
			id = c.Cookies(cookieName)
		}
		c.Locals(cookieLocal, cookieName)
		if !validClientID(id) {
			AdoptClientID(c, NewClientID())
			return c.Next()
		}
		c.Locals(clientIDLocal, id)
		c.Set(ClientIDHeader, id)
		return c.Next()
	}
}

// NewClientID issues an unused client ID.
func NewClientID() string {
	return uuid.NewString()
}

// AdoptClientID switches the request and the browser to id. Login handlers
// call it so a signed-in session never keeps the ID it was given anonymously.
func AdoptClientID(c *fiber.Ctx, id string) {
	if name, ok := c.Locals(cookieLocal).(string); ok && name != "" {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().AddDate(1, 0, 0),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	c.Locals(clientIDLocal, id)
	c.Set(ClientIDHeader, id)
}

// ClientID returns the ID set by ClientIdentity.
func ClientID(c *fiber.Ctx) string {
	id, _ := c.Locals(clientIDLocal).(string)
	return id
}

func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
