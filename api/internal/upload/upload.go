// Package upload validates user-selected files and turns them into
// UploadedFile values backed by a preview store.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/preview"
)

// DefaultMaxBytes bounds a single screenshot.
const DefaultMaxBytes = 20 << 20

// ErrNoFile is wrapped by the validation error for an empty selection.
var ErrNoFile = errors.New("no file selected")

// Source says how a file reached the surface.
type Source string

const (
	SourceDrop Source = "drop"
	SourcePick Source = "pick"
)

// File is a user-provided file as the surface sees it. Multipart parts,
// Telegram attachments and local paths all satisfy it.
type File interface {
	Name() string
	ContentType() string
	Open() (io.ReadCloser, error)
}

// UploadedFile is an accepted image plus its preview reference.
type UploadedFile struct {
	Name     string
	MIMEType string
	Size     int64
	Preview  preview.Ref

	store preview.Store
}

// Open returns the stored image bytes.
func (f *UploadedFile) Open(ctx context.Context) (io.ReadCloser, error) {
	if f == nil || f.store == nil {
		return nil, analysis.ReadFailure(errors.New("no image stored"))
	}
	rc, _, err := f.store.Open(ctx, f.Preview)
	if err != nil {
		return nil, analysis.ReadFailure(err)
	}
	return rc, nil
}

// Release revokes the preview. Safe on nil.
func (f *UploadedFile) Release(ctx context.Context) error {
	if f == nil || f.store == nil {
		return nil
	}
	return f.store.Revoke(ctx, f.Preview)
}

type Surface struct {
	store    preview.Store
	maxBytes int64
	log      *zap.Logger
}

func NewSurface(store preview.Store, maxBytes int64, log *zap.Logger) *Surface {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{store: store, maxBytes: maxBytes, log: log.Named("upload")}
}

func (s *Surface) MaxBytes() int64 { return s.maxBytes }

// OnDrop handles a drag-and-drop selection. Only the first file counts.
func (s *Surface) OnDrop(ctx context.Context, files []File) (*UploadedFile, error) {
	return s.first(ctx, SourceDrop, files)
}

// OnPick handles a file-picker selection. Only the first file counts.
func (s *Surface) OnPick(ctx context.Context, files []File) (*UploadedFile, error) {
	return s.first(ctx, SourcePick, files)
}

// Receive dispatches on the source name; unknown sources count as a pick.
func (s *Surface) Receive(ctx context.Context, source Source, files []File) (*UploadedFile, error) {
	if source == SourceDrop {
		return s.OnDrop(ctx, files)
	}
	return s.OnPick(ctx, files)
}

func (s *Surface) first(ctx context.Context, src Source, files []File) (*UploadedFile, error) {
	if len(files) == 0 || files[0] == nil {
		return nil, &analysis.Error{Kind: analysis.KindValidation, Message: "Please select an image file.", Cause: ErrNoFile}
	}
	uf, err := s.Accept(ctx, files[0])
	if err != nil {
		s.log.Info("upload rejected", zap.String("source", string(src)), zap.String("name", files[0].Name()), zap.Error(err))
		return nil, err
	}
	s.log.Debug("upload accepted", zap.String("source", string(src)), zap.String("name", uf.Name),
		zap.String("mime", uf.MIMEType), zap.Int64("size", uf.Size))
	return uf, nil
}

// Accept validates one file and stores it for preview. Nothing is stored
// for a rejected file.
func (s *Surface) Accept(ctx context.Context, f File) (*UploadedFile, error) {
	ct := strings.TrimSpace(f.ContentType())
	if !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return nil, analysis.InvalidFileType(ct)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, analysis.ReadFailure(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return nil, analysis.ReadFailure(err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, analysis.NewError(analysis.KindValidation,
			fmt.Sprintf("Image is too large (limit %d MB).", s.maxBytes>>20))
	}
	if len(data) == 0 {
		return nil, analysis.NewError(analysis.KindValidation, "The selected image is empty.")
	}

	obj, err := s.store.Put(ctx, ct, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, analysis.ReadFailure(err)
	}
	return &UploadedFile{
		Name:     f.Name(),
		MIMEType: ct,
		Size:     obj.Size,
		Preview:  obj.Ref,
		store:    s.store,
	}, nil
}
