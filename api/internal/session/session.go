// Package session owns the per-user state of a compliance check: the
// selected file, focus area, status, result and error message.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/upload"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

var (
	// ErrRunDisabled: no file selected, or a run is already in flight.
	ErrRunDisabled = errors.New("session: run is not available")
	// ErrSuperseded: the run finished after a reset or a new selection; its outcome was dropped.
	ErrSuperseded = errors.New("session: run superseded")
)

// Analyzer is the part of analysis.Client a session needs.
type Analyzer interface {
	Analyze(ctx context.Context, image io.Reader, mimeType, focusArea string) (analysis.Result, error)
}

type Session struct {
	id       string
	analyzer Analyzer
	log      *zap.Logger

	mu       sync.Mutex
	file     *upload.UploadedFile
	status   Status
	result   *analysis.Result
	focus    string
	errMsg   string
	gen      uint64
	cancel   context.CancelFunc
	lastSeen time.Time

	wg sync.WaitGroup
}

func New(id string, analyzer Analyzer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		id:       id,
		analyzer: analyzer,
		log:      log.With(zap.String("session", id)),
		status:   StatusIdle,
		lastSeen: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// FileInfo is the visible part of the selected file.
type FileInfo struct {
	Name     string
	MIMEType string
	Size     int64
	Preview  string
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	ID        string
	File      *FileInfo
	Status    Status
	Result    *analysis.Result
	FocusArea string
	Error     string
	CanRun    bool
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		Status:    s.status,
		FocusArea: s.focus,
		Error:     s.errMsg,
		CanRun:    s.canRunLocked(),
	}
	if s.file != nil {
		snap.File = &FileInfo{
			Name:     s.file.Name,
			MIMEType: s.file.MIMEType,
			Size:     s.file.Size,
			Preview:  s.file.Preview.String(),
		}
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

// CanRun reports whether Run would start an analysis.
func (s *Session) CanRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canRunLocked()
}

func (s *Session) canRunLocked() bool {
	return s.file != nil && s.status != StatusAnalyzing
}

// File returns the selected file, or nil.
func (s *Session) File() *upload.UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// SelectFile replaces the current file and returns to idle. A run in flight
// is cancelled and its outcome dropped.
func (s *Session) SelectFile(ctx context.Context, f *upload.UploadedFile) {
	s.mu.Lock()
	old := s.file
	s.abortLocked()
	s.file = f
	s.status = StatusIdle
	s.result = nil
	s.errMsg = ""
	s.touchLocked()
	s.mu.Unlock()

	if old != nil && old != f {
		s.release(ctx, old)
	}
}

func (s *Session) SetFocusArea(text string) {
	s.mu.Lock()
	s.focus = text
	s.touchLocked()
	s.mu.Unlock()
}

// Reset clears everything at once and cancels a run in flight.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	old := s.file
	s.abortLocked()
	s.file = nil
	s.status = StatusIdle
	s.result = nil
	s.errMsg = ""
	s.focus = ""
	s.touchLocked()
	s.mu.Unlock()

	if old != nil {
		s.release(ctx, old)
	}
}

// Run analyzes the selected file and blocks until the outcome is applied.
func (s *Session) Run(ctx context.Context) (analysis.Result, error) {
	job, err := s.begin(ctx)
	if err != nil {
		return analysis.Result{}, err
	}
	return s.execute(job)
}

// RunAsync starts the analysis in the background and returns once the
// session is analyzing. The run is detached from any request context.
func (s *Session) RunAsync() error {
	job, err := s.begin(context.Background())
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(job)
	}()
	return nil
}

// Wait blocks until background runs have finished.
func (s *Session) Wait() { s.wg.Wait() }

// Close cancels any run and waits for it.
func (s *Session) Close(ctx context.Context) {
	s.Reset(ctx)
	s.wg.Wait()
}

type job struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	file   *upload.UploadedFile
	focus  string
}

func (s *Session) begin(parent context.Context) (job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canRunLocked() {
		return job{}, ErrRunDisabled
	}
	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	s.status = StatusAnalyzing
	s.result = nil
	s.errMsg = ""
	s.touchLocked()
	return job{gen: s.gen, ctx: ctx, cancel: cancel, file: s.file, focus: s.focus}, nil
}

func (s *Session) execute(j job) (analysis.Result, error) {
	defer j.cancel()
	start := time.Now()

	res, err := s.analyze(j)
	if !s.finish(j.gen, res, err) {
		s.log.Info("stale analysis dropped", zap.Duration("took", time.Since(start)))
		return analysis.Result{}, ErrSuperseded
	}
	if err != nil {
		s.log.Warn("analysis failed", zap.String("kind", string(analysis.KindOf(err))), zap.Error(err))
		return analysis.Result{}, err
	}
	s.log.Info("analysis completed", zap.Duration("took", time.Since(start)), zap.Int("citations", len(res.Citations)))
	return res, nil
}

func (s *Session) analyze(j job) (analysis.Result, error) {
	if s.analyzer == nil {
		return analysis.Result{}, analysis.RemoteFailure(errors.New("analysis is not configured"))
	}
	rc, err := j.file.Open(j.ctx)
	if err != nil {
		return analysis.Result{}, err
	}
	defer rc.Close()
	return s.analyzer.Analyze(j.ctx, rc, j.file.MIMEType, j.focus)
}

// finish applies an outcome if gen is still current.
func (s *Session) finish(gen uint64, res analysis.Result, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.status != StatusAnalyzing {
		return false
	}
	s.cancel = nil
	s.touchLocked()
	if err != nil {
		s.status = StatusError
		s.errMsg = analysis.UserMessage(err)
		return true
	}
	s.status = StatusCompleted
	s.result = &res
	return true
}

func (s *Session) abortLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) touchLocked() { s.lastSeen = time.Now() }

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusAnalyzing
}

func (s *Session) release(ctx context.Context, f *upload.UploadedFile) {
	if err := f.Release(ctx); err != nil {
		s.log.Warn("preview revoke failed", zap.String("preview", f.Preview.String()), zap.Error(err))
	}
}
