package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/types"
)

// PutFile stores content keyed by its sha256. The digest in ref must match.
func (s *SQLStore) PutFile(ctx context.Context, ref *models.FileRef, content []byte) error {
	sum := sha256.Sum256(content)
	if got := hex.EncodeToString(sum[:]); got != ref.SHA256 {
		return types.NewValidationError("file %s: digest %s does not match content %s", ref.Name, ref.SHA256, got)
	}
	_, err := s.exec(ctx, `
		INSERT INTO files (sha256, name, content_type, size, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (sha256) DO NOTHING`,
		ref.SHA256, ref.Name, ref.ContentType, int64(len(content)), content, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("store file %s: %w", ref.Name, err)
	}
	return nil
}

// GetFile returns stored content by digest.
func (s *SQLStore) GetFile(ctx context.Context, digest string) (*models.FileRef, []byte, error) {
	ref := &models.FileRef{SHA256: digest}
	var content []byte
	err := s.queryRow(ctx, `
		SELECT name, content_type, size, content FROM files WHERE sha256 = ?`, digest).
		Scan(&ref.Name, &ref.ContentType, &ref.Size, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, types.NewNotFoundError("file %s not found", digest)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get file %s: %w", digest, err)
	}
	return ref, content, nil
}
