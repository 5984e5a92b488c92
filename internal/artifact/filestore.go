package artifact

import (
	"context"
	"fmt"
	"strings"

	"stargen/internal/storage"
)

// FileUploader adapts the local FileStore to the Uploader contract for
// development and test environments without a hosted object backend.
type FileUploader struct {
	store   *storage.FileStore
	baseURL string
}

// NewFileUploader wraps the given FileStore; baseURL is the public
// prefix the service serves stored files under.
func NewFileUploader(store *storage.FileStore, baseURL string) *FileUploader {
	return &FileUploader{store: store, baseURL: strings.TrimRight(baseURL, "/")}
}

// Upload writes the bytes under bucket/key and returns the served URL.
func (u *FileUploader) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	savedKey, err := u.store.Write(ctx, bucket+"/"+key, data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", u.baseURL, savedKey), nil
}

var _ Uploader = (*FileUploader)(nil)
var _ Uploader = (*SupabaseUploader)(nil)
