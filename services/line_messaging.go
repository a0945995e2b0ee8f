package services

import (
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/linebot"
	"github.com/sirupsen/logrus"
)

var ErrLineDisabled = errors.New("LINE messaging is not configured")

// LineMessagingService pushes admin notices to a LINE group.
type LineMessagingService struct {
	Bot *linebot.Client
}

// NewLineMessagingService returns a disabled service when credentials are missing.
func NewLineMessagingService(channelSecret, channelToken string) *LineMessagingService {
	if channelSecret == "" || channelToken == "" {
		logrus.Info("LINE Messaging API disabled: missing LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN")
		return &LineMessagingService{}
	}

	bot, err := linebot.New(channelSecret, channelToken)
	if err != nil {
		logrus.WithError(err).Error("Cannot create LINE bot client")
		return &LineMessagingService{}
	}
	return &LineMessagingService{Bot: bot}
}

func (s *LineMessagingService) Enabled() bool {
	return s != nil && s.Bot != nil
}

// SendLineMessageToGroup pushes a text message to groupID.
func (s *LineMessagingService) SendLineMessageToGroup(groupID string, message string) error {
	if !s.Enabled() {
		return ErrLineDisabled
	}
	if groupID == "" {
		return fmt.Errorf("LINE group id is empty")
	}
	if _, err := s.Bot.PushMessage(groupID, linebot.NewTextMessage(message)).Do(); err != nil {
		return fmt.Errorf("LINE Messaging API failed: %v", err)
	}
	return nil
}

// Reply answers a webhook event through its reply token.
func (s *LineMessagingService) Reply(replyToken, message string) error {
	if !s.Enabled() {
		return ErrLineDisabled
	}
	if _, err := s.Bot.ReplyMessage(replyToken, linebot.NewTextMessage(message)).Do(); err != nil {
		return fmt.Errorf("LINE reply failed: %v", err)
	}
	return nil
}
