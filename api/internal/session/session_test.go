package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"compliance-check/api/internal/analysis"
	"compliance-check/api/internal/preview"
	"compliance-check/api/internal/upload"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedAnalyzer blocks each call until release is closed or ctx ends.
type gatedAnalyzer struct {
	mu      sync.Mutex
	calls   int
	focus   string
	started chan struct{}
	release chan struct{}
	res     analysis.Result
	err     error
}

func newGated() *gatedAnalyzer {
	return &gatedAnalyzer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gatedAnalyzer) Analyze(ctx context.Context, image io.Reader, _ string, focus string) (analysis.Result, error) {
	_, _ = io.ReadAll(image)
	g.mu.Lock()
	g.calls++
	g.focus = focus
	g.mu.Unlock()
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.res, g.err
	case <-ctx.Done():
		return analysis.Result{}, ctx.Err()
	}
}

type instantAnalyzer struct {
	res analysis.Result
	err error
}

func (a instantAnalyzer) Analyze(context.Context, io.Reader, string, string) (analysis.Result, error) {
	return a.res, a.err
}

func newFile(t *testing.T, store *preview.Memory) *upload.UploadedFile {
	t.Helper()
	uf, err := upload.NewSurface(store, 0, nil).Accept(context.Background(),
		upload.Bytes{FileName: "shot.png", MIME: "image/png", Data: []byte("png")})
	require.NoError(t, err)
	return uf
}

func TestInitialState(t *testing.T) {
	s := New("a", instantAnalyzer{}, nil)
	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.File)
	assert.Nil(t, snap.Result)
	assert.False(t, snap.CanRun)

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunDisabled)
	assert.ErrorIs(t, s.RunAsync(), ErrRunDisabled)
}

func TestRunCompletes(t *testing.T) {
	store := preview.NewMemory()
	want := analysis.Result{Text: "## Verdict\nCompliant", Citations: []analysis.Citation{}}
	s := New("a", instantAnalyzer{res: want}, nil)
	s.SelectFile(context.Background(), newFile(t, store))
	s.SetFocusArea("GDPR")
	assert.True(t, s.CanRun())

	got, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)

	snap := s.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, want.Text, snap.Result.Text)
	assert.Empty(t, snap.Error)
	assert.True(t, snap.CanRun)
	assert.Equal(t, "GDPR", snap.FocusArea)
}

func TestRunFailureSetsError(t *testing.T) {
	s := New("a", instantAnalyzer{err: analysis.RemoteFailure(errors.New("quota exhausted"))}, nil)
	s.SelectFile(context.Background(), newFile(t, preview.NewMemory()))

	_, err := s.Run(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "quota exhausted", snap.Error)
	assert.Nil(t, snap.Result)
}

func TestRunGuardWhileAnalyzing(t *testing.T) {
	g := newGated()
	s := New("a", g, nil)
	s.SelectFile(context.Background(), newFile(t, preview.NewMemory()))

	require.NoError(t, s.RunAsync())
	<-g.started
	assert.False(t, s.CanRun())
	assert.Equal(t, StatusAnalyzing, s.Snapshot().Status)

	assert.ErrorIs(t, s.RunAsync(), ErrRunDisabled)
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunDisabled)

	close(g.release)
	s.Wait()
	assert.Equal(t, StatusCompleted, s.Snapshot().Status)
	assert.Equal(t, 1, g.calls)
}

func TestResetDuringRunDropsResult(t *testing.T) {
	store := preview.NewMemory()
	g := newGated()
	g.res = analysis.Result{Text: "late"}
	s := New("a", g, nil)
	s.SelectFile(context.Background(), newFile(t, store))
	s.SetFocusArea("ads")

	require.NoError(t, s.RunAsync())
	<-g.started
	s.Reset(context.Background())
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Nil(t, snap.File)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.FocusArea)
	assert.Zero(t, store.Len())
}

func TestNewSelectionSupersedesRun(t *testing.T) {
	store := preview.NewMemory()
	g := newGated()
	s := New("a", g, nil)
	s.SelectFile(context.Background(), newFile(t, store))

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()
	<-g.started

	second := newFile(t, store)
	s.SelectFile(context.Background(), second)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	require.NotNil(t, snap.File)
	assert.Equal(t, second.Preview.String(), snap.File.Preview)
	assert.Equal(t, 1, store.Len(), "old preview revoked")
	assert.True(t, snap.CanRun)
}

func TestSelectFileClearsPreviousOutcome(t *testing.T) {
	store := preview.NewMemory()
	s := New("a", instantAnalyzer{err: errors.New("boom")}, nil)
	s.SelectFile(context.Background(), newFile(t, store))
	_, _ = s.Run(context.Background())
	require.Equal(t, StatusError, s.Snapshot().Status)

	s.SelectFile(context.Background(), newFile(t, store))
	snap := s.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Error)
}

func TestRunReadsRevokedPreview(t *testing.T) {
	store := preview.NewMemory()
	s := New("a", instantAnalyzer{}, nil)
	f := newFile(t, store)
	s.SelectFile(context.Background(), f)
	require.NoError(t, store.Revoke(context.Background(), f.Preview))

	_, err := s.Run(context.Background())
	assert.True(t, analysis.IsKind(err, analysis.KindReadFailure))
	assert.Equal(t, StatusError, s.Snapshot().Status)
}

func TestStoreSweep(t *testing.T) {
	store := preview.NewMemory()
	st := NewStore(instantAnalyzer{}, time.Minute, nil)

	a := st.GetOrCreate("a")
	assert.Same(t, a, st.GetOrCreate("a"))
	a.SelectFile(context.Background(), newFile(t, store))
	st.GetOrCreate("b")
	assert.Equal(t, 2, st.Len())

	assert.Zero(t, st.Sweep(context.Background(), time.Now()))
	assert.Equal(t, 2, st.Sweep(context.Background(), time.Now().Add(2*time.Minute)))
	assert.Zero(t, st.Len())
	assert.Zero(t, store.Len())
}

func TestStoreSweepKeepsBusySessions(t *testing.T) {
	g := newGated()
	st := NewStore(g, time.Minute, nil)
	s := st.GetOrCreate("busy")
	s.SelectFile(context.Background(), newFile(t, preview.NewMemory()))
	require.NoError(t, s.RunAsync())
	<-g.started

	assert.Zero(t, st.Sweep(context.Background(), time.Now().Add(time.Hour)))
	st.Close(context.Background())
	assert.Zero(t, st.Len())
}

func TestJanitorStops(t *testing.T) {
	st := NewStore(instantAnalyzer{}, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Janitor(ctx)
		close(done)
	}()
	cancel()
	<-done
}
