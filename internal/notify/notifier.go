package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"geoshard-pipeline/internal/model"
)

// Notifier delivers a rendered notification out-of-band. Delivery failure is
// outside the pipeline's responsibility; callers log it and move on.
type Notifier interface {
	Deliver(ctx context.Context, n model.Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Deliver(ctx context.Context, msg model.Notification) error {
	n.log.Info("notification",
		zap.String("subject", msg.Subject),
		zap.String("datasetId", msg.DatasetID),
		zap.String("message", msg.Message),
	)
	return nil
}

// FileOutbox drops each notification as a text file under a directory, one
// file per delivery, subject on the first line.
type FileOutbox struct {
	dir string
}

func NewFileOutbox(dir string) (*FileOutbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory: %w", err)
	}
	return &FileOutbox{dir: dir}, nil
}

func (o *FileOutbox) Deliver(ctx context.Context, msg model.Notification) error {
	name := fmt.Sprintf("%s-%d.txt", sanitize(msg.DatasetID), time.Now().UnixNano())
	body := msg.Subject + "\n\n" + msg.Message + "\n"
	if err := os.WriteFile(filepath.Join(o.dir, name), []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
