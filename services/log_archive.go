package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"bimbel_go/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	logQueueKey       = "logs:queue"
	minArchiveAgeDays = 7
)

var ErrArchiveNotFound = errors.New("archive not found")

// ObjectStore is the subset of the S3 v2 client used for archives.
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LogArchiveService flushes cached activity logs and archives old ones to S3.
type LogArchiveService struct {
	db      *gorm.DB
	redis   *redis.Client
	objects ObjectStore
	bucket  string
	now     func() time.Time
}

// ArchivedLog is the exported representation stored inside archives
type ArchivedLog struct {
	ID         uint           `json:"id"`
	AdminID    uint           `json:"admin_id"`
	AdminEmail string         `json:"admin_email,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID uint           `json:"resource_id"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewLogArchiveService wires the S3 v2 client from the default AWS chain.
func NewLogArchiveService(db *gorm.DB, rdb *redis.Client, region, bucket string) *LogArchiveService {
	svc := &LogArchiveService{db: db, redis: rdb, bucket: bucket, now: time.Now}

	cfg, err := awscfg.LoadDefaultConfig(context.Background(), awscfg.WithRegion(region))
	if err != nil || cfg.Region == "" {
		logrus.WithError(err).Warn("Failed to load AWS config; log archives stay in the database")
		return svc
	}
	svc.objects = s3.NewFromConfig(cfg)
	return svc
}

// WithObjectStore swaps the archive backend.
func (las *LogArchiveService) WithObjectStore(store ObjectStore, bucket string) *LogArchiveService {
	las.objects = store
	las.bucket = bucket
	return las
}

// FlushCachedLogsToDatabase moves queued logs from Redis into activity_logs.
func (las *LogArchiveService) FlushCachedLogsToDatabase(ctx context.Context) (int, error) {
	if las.redis == nil {
		return 0, fmt.Errorf("redis client not available")
	}

	keys, err := las.redis.ZRangeByScore(ctx, logQueueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(las.now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read log queue: %w", err)
	}

	var processed, failed int
	for _, key := range keys {
		data, err := las.redis.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// expired before flush
				las.redis.ZRem(ctx, logQueueKey, key)
			} else {
				logrus.WithError(err).Errorf("Failed to get log data for key: %s", key)
				failed++
			}
			continue
		}

		var entry models.ActivityLog
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			logrus.WithError(err).Errorf("Failed to unmarshal log data for key: %s", key)
			las.redis.ZRem(ctx, logQueueKey, key)
			failed++
			continue
		}
		entry.ID = 0
		if err := las.db.WithContext(ctx).Create(&entry).Error; err != nil {
			logrus.WithError(err).Error("Failed to save cached log to database")
			failed++
			continue
		}

		pipe := las.redis.Pipeline()
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, logQueueKey, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).Errorf("Failed to remove log from cache: %s", key)
		}
		processed++
	}

	if processed > 0 || failed > 0 {
		logrus.Infof("Flushed %d logs to database, %d errors", processed, failed)
	}
	return processed, nil
}

// ArchiveOldLogs uploads logs older than daysOld to S3 and removes them from
// the database, recording a log_archives row either way.
func (las *LogArchiveService) ArchiveOldLogs(ctx context.Context, daysOld int) (*models.LogArchive, error) {
	if daysOld < minArchiveAgeDays {
		return nil, fmt.Errorf("minimum archive age is %d days", minArchiveAgeDays)
	}
	if las.objects == nil {
		return nil, fmt.Errorf("object storage not configured")
	}

	cutoff := las.now().AddDate(0, 0, -daysOld)
	db := las.db.WithContext(ctx)

	const batchSize = 1000
	var all []ArchivedLog
	var lastID uint
	for {
		var batch []models.ActivityLog
		err := db.Preload("Admin").
			Where("created_at < ? AND id > ?", cutoff, lastID).
			Order("id asc").Limit(batchSize).
			Find(&batch).Error
		if err != nil {
			return nil, fmt.Errorf("failed to fetch logs for archiving: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, l := range batch {
			all = append(all, toArchivedLog(l))
		}
		lastID = batch[len(batch)-1].ID
	}

	if len(all) == 0 {
		logrus.Debug("No logs to archive")
		return nil, nil
	}

	fileName := fmt.Sprintf("activity_logs_%s.zip", cutoff.Format(models.DateLayout))
	key := fmt.Sprintf("logs/archived/%d/%02d/%s", cutoff.Year(), cutoff.Month(), fileName)
	archive := models.LogArchive{
		FileName:    fileName,
		S3Key:       key,
		StartDate:   all[0].CreatedAt,
		EndDate:     all[len(all)-1].CreatedAt,
		RecordCount: len(all),
		Status:      "pending",
	}

	buf, err := createZipArchive(all, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create ZIP archive: %w", err)
	}
	archive.FileSize = int64(buf.Len())

	_, err = las.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(las.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		archive.Status = "failed"
		archive.Error = err.Error()
		if dbErr := db.Create(&archive).Error; dbErr != nil {
			logrus.WithError(dbErr).Error("Failed to save archive metadata")
		}
		return &archive, fmt.Errorf("failed to upload archive to S3: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("created_at < ? AND id <= ?", cutoff, lastID).Delete(&models.ActivityLog{})
		if res.Error != nil {
			return res.Error
		}
		logrus.Infof("Deleted %d archived logs from database", res.RowsAffected)
		archive.Status = "completed"
		return tx.Create(&archive).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return &archive, nil
}

// GetArchivedLogs lists archives, newest first.
func (las *LogArchiveService) GetArchivedLogs(ctx context.Context) ([]models.LogArchive, error) {
	var archives []models.LogArchive
	if err := las.db.WithContext(ctx).Order("created_at DESC").Find(&archives).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve archived logs: %w", err)
	}
	return archives, nil
}

// DownloadArchivedLogs opens an archive stored in S3.
func (las *LogArchiveService) DownloadArchivedLogs(ctx context.Context, archiveID uint) (io.ReadCloser, string, error) {
	var archive models.LogArchive
	if err := las.db.WithContext(ctx).First(&archive, archiveID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrArchiveNotFound
		}
		return nil, "", fmt.Errorf("failed to retrieve archive: %w", err)
	}
	if las.objects == nil {
		return nil, "", fmt.Errorf("object storage not configured")
	}

	out, err := las.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(las.bucket),
		Key:    aws.String(archive.S3Key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to download archive from S3: %w", err)
	}
	return out.Body, archive.FileName, nil
}

// RunMaintenance flushes the cache and archives logs older than 30 days.
func (las *LogArchiveService) RunMaintenance(ctx context.Context) {
	if las.redis != nil {
		if _, err := las.FlushCachedLogsToDatabase(ctx); err != nil {
			logrus.WithError(err).Warn("FlushCachedLogsToDatabase failed")
		}
	}
	if las.objects != nil {
		if _, err := las.ArchiveOldLogs(ctx, 30); err != nil {
			logrus.WithError(err).Warn("ArchiveOldLogs failed")
		}
	}
}

func toArchivedLog(l models.ActivityLog) ArchivedLog {
	out := ArchivedLog{
		ID:         l.ID,
		Action:     l.Action,
		Resource:   l.Resource,
		ResourceID: l.ResourceID,
		IPAddress:  l.IPAddress,
		UserAgent:  l.UserAgent,
		CreatedAt:  l.CreatedAt,
	}
	if !l.Details.IsNull() {
		var details map[string]any
		if err := json.Unmarshal(l.Details, &details); err == nil {
			out.Details = details
		}
	}
	if l.AdminID != nil {
		out.AdminID = *l.AdminID
	}
	if l.Admin != nil {
		out.AdminEmail = l.Admin.Email
	}
	return out
}

// createZipArchive packs logs as JSON, CSV and a metadata file.
func createZipArchive(logs []ArchivedLog, fileName string) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	logsFile, err := zw.Create("activity_logs.json")
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(logsFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"export_date":    time.Now().UTC(),
		"record_count":   len(logs),
		"format_version": "1.0",
		"logs":           logs,
	}); err != nil {
		return nil, err
	}

	metaFile, err := zw.Create("metadata.json")
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(metaFile).Encode(map[string]any{
		"file_name":    fileName,
		"created_at":   time.Now().UTC(),
		"record_count": len(logs),
		"date_range": map[string]any{
			"start": logs[0].CreatedAt,
			"end":   logs[len(logs)-1].CreatedAt,
		},
		"schema_version": "1.0",
		"description":    "Bimbel admin activity log archive",
	}); err != nil {
		return nil, err
	}

	csvFile, err := zw.Create("activity_logs.csv")
	if err != nil {
		return nil, err
	}
	cw := csv.NewWriter(csvFile)
	_ = cw.Write([]string{"ID", "Admin ID", "Admin Email", "Action", "Resource", "Resource ID", "IP Address", "User Agent", "Created At", "Details"})
	for _, l := range logs {
		details := ""
		if l.Details != nil {
			if b, err := json.Marshal(l.Details); err == nil {
				details = string(b)
			}
		}
		_ = cw.Write([]string{
			strconv.FormatUint(uint64(l.ID), 10),
			strconv.FormatUint(uint64(l.AdminID), 10),
			l.AdminEmail,
			l.Action,
			l.Resource,
			strconv.FormatUint(uint64(l.ResourceID), 10),
			l.IPAddress,
			l.UserAgent,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			details,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}
