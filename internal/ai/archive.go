package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// ReceiptArchive stores scanned receipt images in a GCS bucket and returns a
// gs:// URL suitable for Transaction.ReceiptURL.
type ReceiptArchive struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

func NewReceiptArchive(ctx context.Context, bucket string) (*ReceiptArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &ReceiptArchive{client: client, bucket: bucket, now: time.Now}, nil
}

// ObjectName lays receipts out per user and month.
func ObjectName(userID string, at time.Time, mimeType string) string {
	return path.Join("receipts", userID, at.UTC().Format("2006-01"), uuid.NewString()+extensionFor(mimeType))
}

func (a *ReceiptArchive) Store(ctx context.Context, userID string, image []byte, mimeType string) (string, error) {
	name := ObjectName(userID, a.now(), mimeType)

	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := io.Copy(w, bytes.NewReader(image)); err != nil {
		w.Close()
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize receipt upload: %w", err)
	}

	url := fmt.Sprintf("gs://%s/%s", a.bucket, name)
	slog.InfoContext(ctx, "Receipt archived", "user_id", userID, "object", name, "bytes", len(image))
	return url, nil
}

func (a *ReceiptArchive) Close() error {
	return a.client.Close()
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}
