package middleware

import (
	"bimbel_go/i18n"
	"bimbel_go/services/session"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const langLocal = "lang"

// StoreSource hands out the per-client key/value store.
type StoreSource interface {
	Store(clientID string) session.Store
}

// Language picks the response language: the client's saved preference,
// then Accept-Language, then def.
func Language(stores StoreSource, def i18n.Language) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := def
		if id := ClientID(c); id != "" && stores != nil {
			if v, ok, err := stores.Store(id).Get(c.UserContext(), session.LanguageKey); err == nil && ok {
				if l, valid := i18n.Parse(v); valid {
					c.Locals(langLocal, l)
					return c.Next()
				}
			}
		}
		if l, ok := fromAcceptLanguage(c.Get(fiber.HeaderAcceptLanguage)); ok {
			lang = l
		}
		c.Locals(langLocal, lang)
		return c.Next()
	}
}

// Lang returns the request language.
func Lang(c *fiber.Ctx) i18n.Language {
	if l, ok := c.Locals(langLocal).(i18n.Language); ok {
		return l
	}
	return i18n.DefaultLanguage
}

// T translates key into the request language.
func T(c *fiber.Ctx, key string) string {
	return i18n.T(Lang(c), key)
}

func fromAcceptLanguage(header string) (i18n.Language, bool) {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		if l, ok := i18n.Parse(strings.SplitN(tag, "-", 2)[0]); ok {
			return l, true
		}
	}
	return "", false
}
