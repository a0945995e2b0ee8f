package handlers

import (
	"bimbel_go/models"
	"bimbel_go/services"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type reply struct{ token, text string }

type fakeReplier struct {
	mu      sync.Mutex
	replies []reply
}

func (f *fakeReplier) Reply(token, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{token, text})
	return nil
}

func newWebhook(t *testing.T) (*LineWebhookHandler, *fakeReplier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	st := models.Student{FullName: "Budi", GradeLevel: "SMP 8", Status: models.StudentStatusActive}
	require.NoError(t, db.Create(&st).Error)
	attendance := services.NewAttendanceService(db)
	_, err = attendance.Mark(context.Background(), st.ID, services.Today(time.UTC), models.AttendancePresent, "")
	require.NoError(t, err)

	bot := &fakeReplier{}
	return NewLineWebhookHandler(LineWebhookConfig{
		ChannelSecret: "line-secret",
		AdminGroupID:  "Gadmin",
		Bot:           bot,
		Attendance:    attendance,
		Location:      time.UTC,
	}), bot
}

func textEvent(group, text string) string {
	return `{"type":"message","replyToken":"tok-` + group + `","timestamp":1700000000000,` +
		`"source":{"type":"group","groupId":"` + group + `","userId":"U1"},` +
		`"message":{"type":"text","id":"1","text":"` + text + `"}}`
}

func TestProcessRecapCommand(t *testing.T) {
	h, bot := newWebhook(t)

	body := `{"events":[` +
		textEvent("Gadmin", "Rekap") + `,` +
		textEvent("Gother", "rekap") + `,` +
		textEvent("Gadmin", "halo") + `]}`
	require.NoError(t, h.Process(context.Background(), []byte(body)))

	require.Len(t, bot.replies, 1)
	assert.Equal(t, "tok-Gadmin", bot.replies[0].token)
	assert.True(t, strings.HasPrefix(bot.replies[0].text, "Rekap absensi "))
	assert.Contains(t, bot.replies[0].text, "Hadir: 1")
	assert.Contains(t, bot.replies[0].text, "Belum diisi: 0")
}

func TestProcessJoinRepliesGroupID(t *testing.T) {
	h, bot := newWebhook(t)

	body := `{"events":[{"type":"join","replyToken":"r1","timestamp":1700000000000,"source":{"type":"group","groupId":"Gnew"}}]}`
	require.NoError(t, h.Process(context.Background(), []byte(body)))

	require.Len(t, bot.replies, 1)
	assert.Equal(t, "LINE_ADMIN_GROUP_ID=Gnew", bot.replies[0].text)
}

func TestHandleChecksSignature(t *testing.T) {
	h, _ := newWebhook(t)
	app := fiber.New()
	app.Post("/line/webhook", h.Handle)

	body := `{"events":[]}`
	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"missing", "", http.StatusBadRequest},
		{"wrong", "bm9wZQ==", http.StatusUnauthorized},
		{"valid", computeSignature("line-secret", []byte(body)), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/line/webhook", strings.NewReader(body))
			if tt.signature != "" {
				req.Header.Set("X-Line-Signature", tt.signature)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
