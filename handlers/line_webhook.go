package handlers

import (
	"bimbel_go/i18n"
	"bimbel_go/services"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

// Replier answers a LINE event by reply token.
type Replier interface {
	Reply(replyToken, message string) error
}

// LineWebhookHandler serves the admin LINE group: it reports the group ID
// when the bot joins and answers the recap command with today's attendance.
type LineWebhookHandler struct {
	secret     string
	groupID    string
	bot        Replier
	attendance *services.AttendanceService
	lang       i18n.Language
	loc        *time.Location
}

type LineWebhookConfig struct {
	ChannelSecret string
	AdminGroupID  string
	Bot           Replier
	Attendance    *services.AttendanceService
	Language      i18n.Language
	Location      *time.Location
}

var recapCommands = map[string]bool{"rekap": true, "recap": true, "/rekap": true, "/recap": true}

func NewLineWebhookHandler(cfg LineWebhookConfig) *LineWebhookHandler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Language == "" {
		cfg.Language = i18n.DefaultLanguage
	}
	return &LineWebhookHandler{
		secret:     cfg.ChannelSecret,
		groupID:    cfg.AdminGroupID,
		bot:        cfg.Bot,
		attendance: cfg.Attendance,
		lang:       cfg.Language,
		loc:        cfg.Location,
	}
}

// Handle verifies the signature, answers 200 and processes events in the background.
func (h *LineWebhookHandler) Handle(c *fiber.Ctx) error {
	signature := c.Get("X-Line-Signature")
	if signature == "" {
		logrus.Warn("LINE webhook: missing signature header")
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if !validateSignature(h.secret, c.Body(), signature) {
		logrus.Warn("LINE webhook: signature mismatch")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	// fasthttp reuses the body buffer after the handler returns
	body := append([]byte(nil), c.Body()...)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Process(ctx, body); err != nil {
			logrus.WithError(err).Warn("LINE webhook processing failed")
		}
	}()
	return c.SendStatus(fiber.StatusOK)
}

// Process handles a verified webhook payload.
func (h *LineWebhookHandler) Process(ctx context.Context, body []byte) error {
	var webhook struct {
		Events []*linebot.Event `json:"events"`
	}
	if err := json.Unmarshal(body, &webhook); err != nil {
		return fmt.Errorf("parse events: %w", err)
	}

	for _, event := range webhook.Events {
		if event.Source == nil {
			continue
		}
		groupID := event.Source.GroupID
		log := logrus.WithFields(logrus.Fields{"event": event.Type, "group_id": groupID})

		switch event.Type {
		case linebot.EventTypeJoin:
			if groupID == "" {
				continue
			}
			log.Info("LINE bot joined group")
			h.reply(event.ReplyToken, "LINE_ADMIN_GROUP_ID="+groupID)

		case linebot.EventTypeLeave:
			log.Info("LINE bot left group")

		case linebot.EventTypeMessage:
			msg, ok := event.Message.(*linebot.TextMessage)
			if !ok || !recapCommands[strings.ToLower(strings.TrimSpace(msg.Text))] {
				continue
			}
			if h.groupID == "" || groupID != h.groupID {
				log.Debug("recap command outside the admin group ignored")
				continue
			}
			text, err := services.AttendanceRecap(ctx, h.attendance, services.Today(h.loc), h.lang)
			if err != nil {
				log.WithError(err).Error("attendance recap failed")
				continue
			}
			h.reply(event.ReplyToken, text)
		}
	}
	return nil
}

func (h *LineWebhookHandler) reply(token, text string) {
	if h.bot == nil || token == "" {
		return
	}
	if err := h.bot.Reply(token, text); err != nil {
		logrus.WithError(err).Warn("LINE reply failed")
	}
}

// computeSignature returns the base64 HMAC-SHA256 LINE sends in X-Line-Signature.
func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func validateSignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(computeSignature(secret, body)))
}
