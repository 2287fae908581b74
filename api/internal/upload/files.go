package upload

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Bytes is an in-memory File.
type Bytes struct {
	FileName string
	MIME     string
	Data     []byte
}

func (b Bytes) Name() string        { return b.FileName }
func (b Bytes) ContentType() string { return b.MIME }
func (b Bytes) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

// Multipart adapts a multipart form file. The declared part type is used,
// so a browser's classification decides acceptance.
type Multipart struct{ *multipart.FileHeader }

func (m Multipart) Name() string        { return m.Filename }
func (m Multipart) ContentType() string { return m.Header.Get("Content-Type") }
func (m Multipart) Open() (io.ReadCloser, error) {
	return m.FileHeader.Open()
}

// Path is a local file; its type comes from the extension.
type Path string

func (p Path) Name() string { return filepath.Base(string(p)) }
func (p Path) ContentType() string {
	return mime.TypeByExtension(filepath.Ext(string(p)))
}
func (p Path) Open() (io.ReadCloser, error) { return os.Open(string(p)) }
