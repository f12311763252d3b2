package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docchat/internal/models"
)

const (
	DefaultRetention     = 30 * 24 * time.Hour
	DefaultPruneInterval = time.Hour
)

// Transcript is an append-only audit log of chat turns and uploads. It is
// never read back into the running conversation.
type Transcript struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewTranscript(db *sql.DB, logger *zap.Logger) *Transcript {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcript{db: db, logger: logger, now: time.Now}
}

// Record appends one conversation turn.
func (t *Transcript) Record(ctx context.Context, turn models.ChatTurn) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO chat_turns (role, content, created_at) VALUES (?, ?, ?)`,
		string(turn.Role), turn.Text, t.now().UTC())
	if err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

// RecordUpload appends one stored document.
func (t *Transcript) RecordUpload(ctx context.Context, doc *models.Document, size int) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO document_uploads (file_name, size, text_chars, created_at) VALUES (?, ?, ?, ?)`,
		doc.Filename, size, len([]rune(doc.Text)), t.now().UTC())
	if err != nil {
		return fmt.Errorf("insert document upload: %w", err)
	}
	return nil
}

// StartPruner deletes rows older than retention every interval until ctx ends.
func (t *Transcript) StartPruner(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultPruneInterval
	}
	go t.pruneLoop(ctx, retention, interval)
}

func (t *Transcript) pruneLoop(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := t.Prune(ctx, retention); err != nil {
				t.logger.Warn("prune transcript failed", zap.Error(err))
			} else if n > 0 {
				t.logger.Info("transcript pruned", zap.Int64("rows", n))
			}
		}
	}
}

// Prune removes rows created before now-retention and returns how many went.
func (t *Transcript) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := t.now().UTC().Add(-retention)
	var total int64
	for _, table := range []string{"chat_turns", "document_uploads"} {
		res, err := t.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE created_at <= ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
