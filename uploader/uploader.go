// Package uploader drives large video files through the chunked transfer
// protocol: fixed 5 MiB slices sent strictly in order, cumulative progress
// reported by the server, and a final item-creation call that makes the
// upload usable.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nasif-muhamed/learnerd-authoring/client"
)

// ChunkSize is the fixed slice size of the transfer protocol.
const ChunkSize = 5 << 20 // 5 MiB

// State of one transfer. The machine runs Idle -> Uploading -> Finalizing ->
// Done, or drops to Failed from any active state.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Progress is delivered to the progress callback after every state change.
// Fraction is chunks_uploaded / (total_chunks + 1); the reserved extra unit
// keeps displayed progress under 100% until finalization succeeds.
type Progress struct {
	State          State
	ChunkNumber    int
	TotalChunks    int
	ChunksUploaded int
	Fraction       float64
}

// ChunkSender is the slice of the request layer the uploader needs.
type ChunkSender interface {
	UploadChunk(ctx context.Context, chunk client.ChunkRequest) (*client.ChunkResponse, error)
}

// Uploader coordinates one-file-at-a-time chunk transfers. Transfers of
// different files may run on independent Uploader calls concurrently.
type Uploader struct {
	sender      ChunkSender
	journal     *Journal
	log         *zap.Logger
	maxAttempts int
	backoff     time.Duration
	onProgress  func(Progress)
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithJournal persists per-session progress so an interrupted transfer
// resumes from the last acknowledged chunk.
func WithJournal(j *Journal) Option {
	return func(u *Uploader) { u.journal = j }
}

// WithRetry bounds per-chunk attempts and sets the initial backoff, which
// doubles between attempts.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(u *Uploader) {
		u.maxAttempts = maxAttempts
		u.backoff = backoff
	}
}

// WithProgress installs the progress callback.
func WithProgress(fn func(Progress)) Option {
	return func(u *Uploader) { u.onProgress = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(u *Uploader) { u.log = log }
}

// New creates an Uploader with 3 attempts per chunk and 500ms initial backoff.
func New(sender ChunkSender, opts ...Option) *Uploader {
	u := &Uploader{
		sender:      sender,
		log:         zap.NewNop(),
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// NewSessionID derives an upload-session correlation id from the file name
// and creation time. The session exists only for one file's transfer.
func NewSessionID(fileName string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, base)
	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
}

// TotalChunks returns ceil(size / ChunkSize).
func TotalChunks(size int64) int {
	return int((size + ChunkSize - 1) / ChunkSize)
}

// Upload transfers the file under sessionID, then runs finalize (the owning
// item-creation call). Progress reaches 1.0 only after finalize succeeds.
// Cancelling ctx aborts between attempts and between chunks; any chunk
// exhausting its attempts fails the whole transfer.
func (u *Uploader) Upload(ctx context.Context, sessionID, fileName string, data io.ReaderAt, size int64, finalize func(context.Context) error) error {
	if size <= 0 {
		return fmt.Errorf("upload %s: empty file", fileName)
	}
	total := TotalChunks(size)

	start := 1
	if u.journal != nil {
		record, err := u.journal.Begin(sessionID, fileName, size, total)
		if err != nil {
			return fmt.Errorf("upload journal: %w", err)
		}
		if record.ChunksAcked > 0 && record.ChunksAcked < total {
			start = record.ChunksAcked + 1
			u.log.Info("resuming upload from journal",
				zap.String("session", sessionID),
				zap.Int("next_chunk", start),
				zap.Int("total_chunks", total))
		}
	}

	u.report(Progress{
		State:          StateUploading,
		ChunkNumber:    start - 1,
		TotalChunks:    total,
		ChunksUploaded: start - 1,
		Fraction:       fraction(start-1, total),
	})

	buf := make([]byte, ChunkSize)
	for n := start; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return u.fail(sessionID, fmt.Errorf("upload %s cancelled: %w", fileName, err))
		}

		offset := int64(n-1) * ChunkSize
		length := size - offset
		if length > ChunkSize {
			length = ChunkSize
		}
		if _, err := data.ReadAt(buf[:length], offset); err != nil && err != io.EOF {
			return u.fail(sessionID, fmt.Errorf("read chunk %d of %s: %w", n, fileName, err))
		}

		resp, err := u.sendChunk(ctx, client.ChunkRequest{
			UploadID:    sessionID,
			ChunkNumber: n,
			TotalChunks: total,
			FileName:    fileName,
			Data:        buf[:length],
		})
		if err != nil {
			return u.fail(sessionID, fmt.Errorf("upload %s chunk %d/%d: %w", fileName, n, total, err))
		}

		if u.journal != nil {
			if err := u.journal.Ack(sessionID, resp.ChunksUploaded); err != nil {
				u.log.Warn("journal ack failed", zap.String("session", sessionID), zap.Error(err))
			}
		}
		u.report(Progress{
			State:          StateUploading,
			ChunkNumber:    n,
			TotalChunks:    total,
			ChunksUploaded: resp.ChunksUploaded,
			Fraction:       fraction(resp.ChunksUploaded, total),
		})
	}

	u.report(Progress{
		State:          StateFinalizing,
		ChunkNumber:    total,
		TotalChunks:    total,
		ChunksUploaded: total,
		Fraction:       fraction(total, total),
	})
	if err := finalize(ctx); err != nil {
		return u.fail(sessionID, fmt.Errorf("finalize upload %s: %w", fileName, err))
	}

	if u.journal != nil {
		if err := u.journal.Complete(sessionID); err != nil {
			u.log.Warn("journal complete failed", zap.String("session", sessionID), zap.Error(err))
		}
	}
	u.report(Progress{
		State:          StateDone,
		ChunkNumber:    total,
		TotalChunks:    total,
		ChunksUploaded: total + 1,
		Fraction:       1,
	})
	return nil
}

// sendChunk retries one chunk with doubling backoff. Errors that renewed
// credentials cannot fix are not retried.
func (u *Uploader) sendChunk(ctx context.Context, chunk client.ChunkRequest) (*client.ChunkResponse, error) {
	var lastErr error
	delay := u.backoff
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		resp, err := u.sender.UploadChunk(ctx, chunk)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, client.ErrLoggedOut) || client.IsAccountDisabled(err) || client.IsValidation(err) {
			return nil, err
		}
		if attempt == u.maxAttempts {
			break
		}
		u.log.Warn("chunk attempt failed, retrying",
			zap.Int("chunk", chunk.ChunkNumber),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (u *Uploader) fail(sessionID string, err error) error {
	if u.journal != nil {
		if jerr := u.journal.Fail(sessionID); jerr != nil {
			u.log.Warn("journal fail-mark failed", zap.String("session", sessionID), zap.Error(jerr))
		}
	}
	u.report(Progress{State: StateFailed})
	return err
}

func (u *Uploader) report(p Progress) {
	if u.onProgress != nil {
		u.onProgress(p)
	}
}

func fraction(uploaded, total int) float64 {
	return float64(uploaded) / float64(total+1)
}
