package uploadsvc

import (
	"context"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

// MemoryUploader keeps files in memory. Used in development and tests.
type MemoryUploader struct {
	baseURL string
	mu      sync.RWMutex
	files   map[string][]byte
}

var _ core.Uploader = (*MemoryUploader)(nil)

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{baseURL: baseURL, files: make(map[string][]byte)}
}

func (u *MemoryUploader) Upload(ctx context.Context, file io.Reader, filename, folder string) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", errors.Wrap(err, "reading upload")
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}
	key := path.Join(folder, uuid.NewString()+path.Ext(filename))

	u.mu.Lock()
	defer u.mu.Unlock()
	u.files[key] = data
	return u.baseURL + "/" + key, nil
}

// File returns the content uploaded at url.
func (u *MemoryUploader) File(url string) ([]byte, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	data, ok := u.files[strings.TrimPrefix(url, u.baseURL+"/")]
	return data, ok
}

// Len returns the number of stored files.
func (u *MemoryUploader) Len() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return len(u.files)
}
