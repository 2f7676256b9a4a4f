// Package watch recomputes the Merkle commitment of a dataset file whenever
// it changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/mymonad/zkvdb/pkg/dataset"
	"github.com/mymonad/zkvdb/pkg/fixedpoint"
	"github.com/mymonad/zkvdb/pkg/vectordb"
)

var (
	// ErrNotRegularFile is returned when the watched path is a directory.
	ErrNotRegularFile = errors.New("watch: dataset path is not a regular file")

	// ErrDatasetRemoved is reported when the dataset file disappears.
	ErrDatasetRemoved = errors.New("watch: dataset removed")
)

// Op represents the type of file operation.
type Op int

const (
	OpInitial Op = iota
	OpCreate
	OpModify
	OpDelete
)

// String returns a human-readable representation of the operation.
func (o Op) String() string {
	switch o {
	case OpInitial:
		return "Initial"
	case OpCreate:
		return "Create"
	case OpModify:
		return "Modify"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Update is the commitment of the dataset after a change.
type Update struct {
	Path string
	Op   Op

	// Root is the Merkle root of the quantized vectors. Nil when Err is set.
	Root      *big.Int
	Vectors   int
	Dimension int

	Err error
}

// Committer loads a dataset file and computes its Merkle root.
type Committer struct {
	FixedPoint fixedpoint.Config
	Hasher     vectordb.Hasher
	Normalize  bool
}

// Commit loads path and returns its commitment. Errors are reported in the
// Update rather than returned.
func (c Committer) Commit(path string) Update {
	u := Update{Path: path}

	d, err := dataset.Load(path)
	if err != nil {
		u.Err = err
		return u
	}
	if c.Normalize {
		if err := d.Normalize(); err != nil {
			u.Err = err
			return u
		}
	}

	root, err := vectordb.ComputeMerkleRoot(c.FixedPoint, c.Hasher, d.Vectors)
	if err != nil {
		u.Err = err
		return u
	}
	u.Root = root
	u.Vectors = len(d.Vectors)
	u.Dimension = d.Dimension()
	return u
}

// ErrorCallback is called when the underlying watcher reports an error.
type ErrorCallback func(err error)

// Watcher monitors one dataset file. It watches the parent directory so
// that editors replacing the file through a rename are also seen.
type Watcher struct {
	path      string
	committer Committer
	updates   chan<- Update
	fsw       *fsnotify.Watcher

	onError      ErrorCallback
	droppedCount atomic.Int64

	// last successful root, used to suppress duplicate updates
	last *big.Int

	done chan struct{}
}

// NewWatcher creates a watcher for the dataset at path.
func NewWatcher(path string, committer Committer, updates chan<- Update) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access dataset: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:      abs,
		committer: committer,
		updates:   updates,
		fsw:       fsw,
		done:      make(chan struct{}),
	}, nil
}

// Path returns the absolute path of the watched dataset.
func (w *Watcher) Path() string {
	return w.path
}

// SetErrorCallback sets a callback function that will be called when errors occur.
func (w *Watcher) SetErrorCallback(cb ErrorCallback) {
	w.onError = cb
}

// DroppedEventCount returns the number of updates that were dropped due to channel full.
func (w *Watcher) DroppedEventCount() int64 {
	return w.droppedCount.Load()
}

// Start emits the initial commitment and then one update per change of the
// root (blocking). Returns when the context is cancelled or Close() is called.
func (w *Watcher) Start(ctx context.Context) {
	w.emit(OpInitial)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}

			switch {
			case event.Op&fsnotify.Create != 0:
				w.emit(OpCreate)
			case event.Op&fsnotify.Write != 0:
				w.emit(OpModify)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.last = nil
				w.send(Update{Path: w.path, Op: OpDelete, Err: ErrDatasetRemoved})
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

func (w *Watcher) emit(op Op) {
	u := w.committer.Commit(w.path)
	u.Op = op
	if u.Err == nil {
		// partial writes produce several events for the same content
		if w.last != nil && w.last.Cmp(u.Root) == 0 {
			return
		}
		w.last = u.Root
	}
	w.send(u)
}

// send never blocks; updates are dropped and counted when the channel is full.
func (w *Watcher) send(u Update) {
	select {
	case w.updates <- u:
	default:
		w.droppedCount.Add(1)
	}
}

// Close stops the watcher and signals Start() to return.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.fsw.Close()
}
