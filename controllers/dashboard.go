package controllers

import (
	"bimbel_go/services"
	"bimbel_go/utils"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type DashboardController struct {
	svc         *services.DashboardService
	loc         *time.Location
	adminPhone  string
	countryCode string
}

func NewDashboardController(svc *services.DashboardService, loc *time.Location, adminPhone, countryCode string) *DashboardController {
	return &DashboardController{svc: svc, loc: loc, adminPhone: adminPhone, countryCode: countryCode}
}

// Stats backs the admin dashboard cards.
func (dc *DashboardController) Stats(c *fiber.Ctx) error {
	stats, err := dc.svc.AdminStats(c.UserContext(), services.Today(dc.loc))
	if err != nil {
		logrus.WithError(err).Error("dashboard stats failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// PublicStats is the landing page counter. No auth.
func (dc *DashboardController) PublicStats(c *fiber.Ctx) error {
	n, err := dc.svc.ActiveStudentCount(c.UserContext())
	if err != nil {
		logrus.WithError(err).Error("public stats failed")
		return errorJSON(c, fiber.StatusInternalServerError, "fetch_failed")
	}
	return c.JSON(fiber.Map{"active_students": n})
}

// PublicContact returns the admin WhatsApp link shown on the landing page.
func (dc *DashboardController) PublicContact(c *fiber.Ctx) error {
	return adminContact(c, dc.adminPhone, dc.countryCode, c.Query("message"))
}

func adminContact(c *fiber.Ctx, phone, countryCode, message string) error {
	link, err := utils.WhatsAppLink(phone, countryCode, message)
	if err != nil {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "invalid_phone")
	}
	return c.JSON(fiber.Map{
		"url":    link,
		"number": utils.FormatWhatsAppNumber(phone, countryCode),
	})
}

