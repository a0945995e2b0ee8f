package controllers

import (
	"bimbel_go/i18n"
	"bimbel_go/middleware"
	"bimbel_go/services/session"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type PreferenceController struct {
	stores middleware.StoreSource
}

func NewPreferenceController(stores middleware.StoreSource) *PreferenceController {
	return &PreferenceController{stores: stores}
}

type LanguageRequest struct {
	Language string `json:"language" validate:"required"`
}

// GetLanguage reports the language the request resolved to.
func (pc *PreferenceController) GetLanguage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"language": middleware.Lang(c)})
}

// SetLanguage saves the client's language choice in its store.
func (pc *PreferenceController) SetLanguage(c *fiber.Ctx) error {
	var req LanguageRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}
	lang, ok := i18n.Parse(req.Language)
	if !ok {
		return errorJSON(c, fiber.StatusBadRequest, "unknown_language")
	}
	store := pc.stores.Store(middleware.ClientID(c))
	if err := store.Set(c.UserContext(), session.LanguageKey, string(lang), session.RecordTTL); err != nil {
		logrus.WithError(err).Error("save language failed")
		return errorJSON(c, fiber.StatusInternalServerError, "save_failed")
	}
	return c.JSON(fiber.Map{
		"message":  i18n.T(lang, "language_saved"),
		"language": lang,
	})
}

// Dictionary serves the full string table for :lang.
func (pc *PreferenceController) Dictionary(c *fiber.Ctx) error {
	lang, ok := i18n.Parse(c.Params("lang"))
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "unknown_language")
	}
	return c.JSON(fiber.Map{
		"language":     lang,
		"translations": i18n.Table(lang),
	})
}
