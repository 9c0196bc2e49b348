package uploader

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Journal record statuses.
const (
	statusPending   = "pending"
	statusUploading = "uploading"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// UploadRecord is one journaled upload session. ChunksAcked mirrors the
// server's cumulative counter so a restarted process resumes from the last
// acknowledged chunk instead of chunk 1.
type UploadRecord struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"uniqueIndex;size:191" json:"session_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	TotalChunks int    `json:"total_chunks"`
	ChunksAcked int    `json:"chunks_acked"`
	Status      string `gorm:"index" json:"status"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time `gorm:"index"`
}

// Journal persists upload-session progress in a local sqlite file. Sessions
// older than the TTL are considered abandoned and reclaimed by the janitor.
type Journal struct {
	db  *gorm.DB
	ttl time.Duration
}

// OpenJournal opens (or creates) the journal file and runs migrations.
func OpenJournal(path string, ttl time.Duration) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open upload journal: %w", err)
	}
	if err := db.AutoMigrate(&UploadRecord{}); err != nil {
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Journal{db: db, ttl: ttl}, nil
}

// Begin returns the journaled record for a session, creating it when absent.
// A record whose size or chunk count no longer matches the file is reset:
// the session id belongs to a different byte stream now.
func (j *Journal) Begin(sessionID, fileName string, size int64, totalChunks int) (*UploadRecord, error) {
	var record UploadRecord
	err := j.db.Where("session_id = ?", sessionID).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = UploadRecord{
			SessionID:   sessionID,
			FileName:    fileName,
			FileSize:    size,
			TotalChunks: totalChunks,
			Status:      statusPending,
			ExpiresAt:   time.Now().Add(j.ttl),
		}
		if err := j.db.Create(&record).Error; err != nil {
			return nil, err
		}
		return &record, nil
	case err != nil:
		return nil, err
	}

	if record.FileSize != size || record.TotalChunks != totalChunks || record.Status == statusCompleted {
		record.FileName = fileName
		record.FileSize = size
		record.TotalChunks = totalChunks
		record.ChunksAcked = 0
		record.Status = statusPending
		record.ExpiresAt = time.Now().Add(j.ttl)
		if err := j.db.Save(&record).Error; err != nil {
			return nil, err
		}
	}
	return &record, nil
}

// Ack records the server's cumulative acknowledged-chunk count.
func (j *Journal) Ack(sessionID string, chunksUploaded int) error {
	return j.db.Model(&UploadRecord{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"chunks_acked": chunksUploaded,
			"status":       statusUploading,
			"expires_at":   time.Now().Add(j.ttl),
		}).Error
}

// Complete marks the session finished.
func (j *Journal) Complete(sessionID string) error {
	return j.db.Model(&UploadRecord{}).
		Where("session_id = ?", sessionID).
		Update("status", statusCompleted).Error
}

// Fail marks the session failed; its chunk progress is kept for resume.
func (j *Journal) Fail(sessionID string) error {
	return j.db.Model(&UploadRecord{}).
		Where("session_id = ?", sessionID).
		Update("status", statusFailed).Error
}

// Lookup returns the record for a session id, or nil when unknown.
func (j *Journal) Lookup(sessionID string) (*UploadRecord, error) {
	var record UploadRecord
	err := j.db.Where("session_id = ?", sessionID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// PurgeExpired deletes completed sessions and any session whose expiry has
// passed, returning the number of rows removed.
func (j *Journal) PurgeExpired(now time.Time) (int64, error) {
	result := j.db.Where("status = ? OR expires_at <= ?", statusCompleted, now).
		Delete(&UploadRecord{})
	return result.RowsAffected, result.Error
}
