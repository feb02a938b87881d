package record

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestFile(t *testing.T) *File {
	t.Helper()

	f, err := NewFile(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFileLoadMissing(t *testing.T) {
	f := newTestFile(t)
	_, err := f.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileSaveLoadClear(t *testing.T) {
	f := newTestFile(t)
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, []byte(`{"id":"u1"}`)))

	got, err := f.Load(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"u1"}`, string(got))

	require.NoError(t, f.Clear(ctx))
	_, err = f.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	// Clearing an already absent record is a no-op.
	require.NoError(t, f.Clear(ctx))
}

func TestFileWatchSeesSiblingWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	watcherTab, err := NewFile(path)
	require.NoError(t, err)
	defer func() { _ = watcherTab.Close() }()

	writerTab, err := NewFile(path)
	require.NoError(t, err)
	defer func() { _ = writerTab.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := watcherTab.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writerTab.Save(ctx, []byte(`{"id":"u7"}`)))

	require.Eventually(t, func() bool {
		select {
		case c := <-changes:
			return !c.Removed && string(c.Payload) == `{"id":"u7"}`
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFileWatchSeesSiblingRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	watcherTab, err := NewFile(path)
	require.NoError(t, err)
	defer func() { _ = watcherTab.Close() }()

	writerTab, err := NewFile(path)
	require.NoError(t, err)
	defer func() { _ = writerTab.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, writerTab.Save(ctx, []byte(`{"id":"u7"}`)))

	changes, err := watcherTab.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writerTab.Clear(ctx))

	require.Eventually(t, func() bool {
		select {
		case c := <-changes:
			return c.Removed
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFileOwnWritesSuppressed(t *testing.T) {
	f := newTestFile(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := f.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, f.Save(ctx, []byte(`{"id":"u1"}`)))
	require.NoError(t, f.Clear(ctx))

	// Quiet window: nothing of our own writes may come back.
	select {
	case c := <-changes:
		t.Fatalf("own write echoed back: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := f.Watch(ctx)
	require.NoError(t, err)

	other, err := NewFile(filepath.Join(dir, "other.json"))
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	require.NoError(t, other.Save(ctx, []byte("noise")))

	select {
	case c := <-changes:
		t.Fatalf("unrelated file produced a change: %+v", c)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileSecondWatchRejected(t *testing.T) {
	f := newTestFile(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.Watch(ctx)
	require.NoError(t, err)
	_, err = f.Watch(ctx)
	require.ErrorIs(t, err, ErrWatchActive)
}

func TestFileClosedUnavailable(t *testing.T) {
	f := newTestFile(t)
	require.NoError(t, f.Close())

	_, err := f.Load(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, f.Save(context.Background(), []byte("x")), ErrUnavailable)
}
