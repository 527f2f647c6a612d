package uploadsvc

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cloudinaryMock struct {
	params uploader.UploadParams
	res    *uploader.UploadResult
}

func (m *cloudinaryMock) Upload(_ context.Context, _ interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	m.params = params
	return m.res, nil
}

func TestCloudinaryUploader_Upload(t *testing.T) {
	mock := &cloudinaryMock{res: &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/raw/upload/notes.pdf"}}
	u := &CloudinaryUploader{upload: mock, rootFolder: "academia"}

	url, err := u.Upload(context.Background(), strings.NewReader("pdf"), `C:\docs\notes.pdf`, "materials")
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/raw/upload/notes.pdf", url)
	assert.Equal(t, "academia/materials", mock.params.Folder)
	assert.Equal(t, "notes", mock.params.PublicID)
	assert.Equal(t, "auto", mock.params.ResourceType)

	mock.res = &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid file"}}
	_, err = u.Upload(context.Background(), strings.NewReader("x"), "x.bin", "tickets")
	assert.EqualError(t, err, "uploading to cloudinary: Invalid file")
}

func TestMemoryUploader(t *testing.T) {
	u := NewMemoryUploader("memory://uploads")

	url, err := u.Upload(context.Background(), strings.NewReader("hello"), "hello.txt", "tickets")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://uploads/tickets/"))
	assert.True(t, strings.HasSuffix(url, ".txt"))

	data, ok := u.File(url)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))

	_, ok = u.File("memory://uploads/tickets/nope.txt")
	assert.False(t, ok)
}
