// Package preview keeps uploaded images addressable by a revocable reference
// for as long as a session holds them.
package preview

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or revoked references.
var ErrNotFound = errors.New("preview: not found")

// Ref identifies one stored image.
type Ref string

func newRef() Ref { return Ref(uuid.NewString()) }

// Valid reports whether r looks like a reference this package issued.
func (r Ref) Valid() bool {
	_, err := uuid.Parse(string(r))
	return err == nil
}

func (r Ref) String() string { return string(r) }

// Object describes stored bytes.
type Object struct {
	Ref         Ref
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, contentType string, r io.Reader, size int64) (Object, error)
	Open(ctx context.Context, ref Ref) (io.ReadCloser, Object, error)
	Revoke(ctx context.Context, ref Ref) error
	Check(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Backend   string // memory | minio
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// New builds the configured backend. An empty backend means memory.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemory(), nil
	case "minio":
		return NewMinio(ctx, cfg)
	default:
		return nil, errors.New("preview: unknown backend " + cfg.Backend)
	}
}
