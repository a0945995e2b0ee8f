package services

import (
	"bimbel_go/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const logCacheTTL = 24 * time.Hour

// ActivityLogger stores admin activity, queueing in Redis when available.
type ActivityLogger struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewActivityLogger(db *gorm.DB, rdb *redis.Client) *ActivityLogger {
	return &ActivityLogger{db: db, redis: rdb}
}

// Record caches entry for the maintenance flush, or writes it straight to
// the database when Redis is unavailable or fails.
func (l *ActivityLogger) Record(ctx context.Context, entry models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if l.redis != nil {
		if err := l.cache(ctx, entry); err == nil {
			return nil
		}
	}
	if l.db == nil {
		return fmt.Errorf("no database for activity log")
	}
	return l.db.WithContext(ctx).Create(&entry).Error
}

func (l *ActivityLogger) cache(ctx context.Context, entry models.ActivityLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %w", err)
	}
	var admin uint
	if entry.AdminID != nil {
		admin = *entry.AdminID
	}
	key := fmt.Sprintf("log:%d:%s:%d", admin, entry.Action, time.Now().UnixNano())

	pipe := l.redis.TxPipeline()
	pipe.Set(ctx, key, data, logCacheTTL)
	pipe.ZAdd(ctx, logQueueKey, &redis.Z{Score: float64(entry.CreatedAt.Unix()), Member: key})
	_, err = pipe.Exec(ctx)
	return err
}

// LogFilter narrows List.
type LogFilter struct {
	AdminID  uint
	Action   string
	Resource string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// List returns a page of logs, newest first, with the total match count.
func (l *ActivityLogger) List(ctx context.Context, f LogFilter) ([]models.ActivityLog, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 50
	}

	q := l.db.WithContext(ctx).Model(&models.ActivityLog{})
	if f.AdminID != 0 {
		q = q.Where("admin_id = ?", f.AdminID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		q = q.Where("resource = ?", f.Resource)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}
	var rows []models.ActivityLog
	err := q.Preload("Admin").Order("created_at DESC").Order("id DESC").
		Offset((f.Page - 1) * f.Limit).Limit(f.Limit).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	return rows, total, nil
}

// LogStats summarizes stored logs.
type LogStats struct {
	Total             int64            `json:"total"`
	TotalToday        int64            `json:"total_today"`
	ActionBreakdown   map[string]int64 `json:"action_breakdown"`
	ResourceBreakdown map[string]int64 `json:"resource_breakdown"`
	Queued            int64            `json:"queued"`
}

func (l *ActivityLogger) Stats(ctx context.Context, dayStart time.Time) (*LogStats, error) {
	db := l.db.WithContext(ctx)
	stats := &LogStats{ActionBreakdown: map[string]int64{}, ResourceBreakdown: map[string]int64{}}

	if err := db.Model(&models.ActivityLog{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ActivityLog{}).Where("created_at >= ?", dayStart).Count(&stats.TotalToday).Error; err != nil {
		return nil, err
	}

	var byAction []struct {
		Action string
		Count  int64
	}
	if err := db.Model(&models.ActivityLog{}).Select("action, COUNT(*) as count").Group("action").Find(&byAction).Error; err != nil {
		return nil, err
	}
	for _, s := range byAction {
		stats.ActionBreakdown[s.Action] = s.Count
	}

	var byResource []struct {
		Resource string
		Count    int64
	}
	if err := db.Model(&models.ActivityLog{}).Select("resource, COUNT(*) as count").Group("resource").Find(&byResource).Error; err != nil {
		return nil, err
	}
	for _, s := range byResource {
		stats.ResourceBreakdown[s.Resource] = s.Count
	}

	if l.redis != nil {
		if n, err := l.redis.ZCard(ctx, logQueueKey).Result(); err == nil {
			stats.Queued = n
		}
	}
	return stats, nil
}
