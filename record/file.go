package record

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// File persists the record as a single file and watches the containing
// directory for changes made by other processes. Writes are atomic
// (temp file + rename) so watchers never observe a torn payload.
//
// Self-suppression is content-based: the handle remembers a fingerprint of
// its own last write and drops filesystem events that match it, so a tab
// never hears its own Save or Clear.
type File struct {
	path string
	dir  string
	base string

	mu          sync.Mutex
	selfSum     [sha256.Size]byte
	hasSelf     bool
	selfRemoved bool
	watching    bool
	closed      bool
	watcher     *fsnotify.Watcher
}

// NewFile creates a file-backed store at path, creating parent directories
// as needed.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve record path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	return &File{
		path: abs,
		dir:  dir,
		base: filepath.Base(abs),
	}, nil
}

func (f *File) Load(ctx context.Context) ([]byte, error) {
	if err := f.alive(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (f *File) Save(ctx context.Context, payload []byte) error {
	if err := f.alive(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, f.base+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f.selfSum = sha256.Sum256(payload)
	f.hasSelf = true
	f.selfRemoved = false
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	if err := f.alive(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.hasSelf = false
	f.selfRemoved = true
	return nil
}

func (f *File) Watch(ctx context.Context) (<-chan Change, error) {
	if err := f.alive(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.watching {
		f.mu.Unlock()
		return nil, ErrWatchActive
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.watching = true
	f.watcher = watcher
	f.mu.Unlock()

	out := make(chan Change)
	go func() {
		defer close(out)
		defer f.stopWatch()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				change, deliver := f.translate(ev)
				if !deliver {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watch errors are transient on all supported platforms;
				// the store keeps watching and the tab reconciles on Load.
			}
		}
	}()

	return out, nil
}

// translate maps one filesystem event onto at most one externally-originated
// Change, filtering out events caused by this handle's own writes.
func (f *File) translate(ev fsnotify.Event) (Change, bool) {
	if filepath.Base(ev.Name) != f.base {
		return Change{}, false
	}

	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		f.mu.Lock()
		self := f.selfRemoved
		f.selfRemoved = false
		f.mu.Unlock()
		if self {
			return Change{}, false
		}
		// Rename over the record counts as a removal only when the file is
		// actually gone; an atomic replace is reported by the Create branch.
		if _, err := os.Stat(f.path); err == nil {
			return Change{}, false
		}
		return Change{Removed: true}, true
	}

	if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return Change{}, false
		}
		sum := sha256.Sum256(data)
		f.mu.Lock()
		self := f.hasSelf && sum == f.selfSum
		f.mu.Unlock()
		if self {
			return Change{}, false
		}
		return Change{Payload: data}, true
	}

	return Change{}, false
}

func (f *File) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.stopWatch()
	return nil
}

func (f *File) stopWatch() {
	f.mu.Lock()
	watcher := f.watcher
	f.watcher = nil
	f.watching = false
	f.mu.Unlock()
	if watcher != nil {
		_ = watcher.Close()
	}
}

func (f *File) alive() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrUnavailable
	}
	return nil
}
