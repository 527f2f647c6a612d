package core

import (
	"context"
	"io"
)

// Uploader stores files on an object storage and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, filename, folder string) (url string, err error)
}
