package validator

import (
	"bytes"
	"errors"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/testcase-generator/internal/models"
	"github.com/feichai0017/testcase-generator/pkg/logger"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func headers(t *testing.T, files map[string][]byte, order ...string) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"]
}

func TestValidateFilesAccepts(t *testing.T) {
	v := NewUploadValidator(DefaultConfig(), logger.NewNop())
	files := headers(t, map[string][]byte{
		"Login.PNG": pngHeader,
		"spec.pdf":  []byte("%PDF-1.4\n"),
	}, "Login.PNG", "spec.pdf")

	infos, err := v.ValidateFiles(files)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, ".png", infos[0].Extension)
	assert.Equal(t, "image/png", infos[0].MimeType)
	assert.Equal(t, "application/pdf", infos[1].MimeType)
	assert.Len(t, infos[0].Hash, 64)
}

func TestValidateFilesRejects(t *testing.T) {
	v := NewUploadValidator(Config{MaxFileSize: 4}, logger.NewNop())

	_, err := v.ValidateFiles(nil)
	assert.True(t, errors.Is(err, models.ErrInvalidUpload))

	txt := headers(t, map[string][]byte{"a.pdf": []byte("%PDF"), "notes.txt": []byte("hi")}, "a.pdf", "notes.txt")
	_, err = v.ValidateFiles(txt)
	assert.True(t, errors.Is(err, models.ErrInvalidUpload))
	assert.Contains(t, err.Error(), "notes.txt")

	big := headers(t, map[string][]byte{"big.png": pngHeader}, "big.png")
	_, err = v.ValidateFiles(big)
	assert.True(t, errors.Is(err, models.ErrInvalidUpload))

	err = v.CheckNames([]*multipart.FileHeader{{Filename: "  "}})
	assert.True(t, errors.Is(err, models.ErrInvalidUpload))

	err = v.CheckNames([]*multipart.FileHeader{{Filename: "old.doc"}})
	assert.True(t, errors.Is(err, models.ErrInvalidUpload))
}

func TestAllowedTypesNormalised(t *testing.T) {
	v := NewUploadValidator(Config{AllowedTypes: []string{"PDF"}}, logger.NewNop())
	assert.NoError(t, v.CheckNames([]*multipart.FileHeader{{Filename: "x.Pdf", Size: 1}}))
	assert.Error(t, v.CheckNames([]*multipart.FileHeader{{Filename: "x.png", Size: 1}}))
}
