package trigger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Koba-gh/bedrock-json-cdk/internal/media"
	"github.com/Koba-gh/bedrock-json-cdk/internal/pipeline"
	"github.com/Koba-gh/bedrock-json-cdk/internal/storage"
)

// DefaultSettle is how long a file must go without writes before it is
// processed.
const DefaultSettle = 500 * time.Millisecond

var errNotSettled = errors.New("file still changing")

// ResultFunc is called after each processed file.
type ResultFunc func(ref storage.ObjectRef, res *pipeline.Result, err error)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Dir is watched recursively. Object keys are paths relative to it.
	Dir string
	// Bucket is recorded as the item's bucket.
	Bucket string
	Settle time.Duration
	// Existing processes files already in Dir at startup.
	Existing bool
	OnResult ResultFunc
}

// Watcher processes files as they appear in a local directory, the local
// stand-in for an S3 put trigger.
type Watcher struct {
	cfg    WatcherConfig
	proc   Processor
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	stop    chan struct{}
}

// NewWatcher returns a watcher over cfg.Dir.
func NewWatcher(cfg WatcherConfig, proc Processor, logger *zap.Logger) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cfg:     cfg,
		proc:    proc,
		logger:  logger.With(zap.String("dir", cfg.Dir)),
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		stop:    make(chan struct{}),
	}
}

// Run watches until ctx is canceled. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	var existing []string
	err = filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if w.cfg.Existing && supported(path) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}
	w.logger.Info("watching for uploads", zap.Strings("extensions", media.Extensions()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.work(ctx)
	}()
	for _, path := range existing {
		w.schedule(path)
	}

	defer func() {
		close(w.stop)
		w.stopTimers()
		<-done
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !supported(event.Name) {
		w.logger.Debug("ignoring file", zap.String("path", event.Name))
		return
	}
	w.schedule(event.Name)
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		// A fired timer is already queuing path; waitStable absorbs this write.
		if t.Stop() {
			t.Reset(w.cfg.Settle)
		}
		return
	}
	w.pending[path] = time.AfterFunc(w.cfg.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.stop:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if err := w.waitStable(ctx, path); err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("file never settled", zap.String("path", path), zap.Error(err))
		}
		return
	}
	rel, err := filepath.Rel(w.cfg.Dir, path)
	if err != nil {
		w.logger.Warn("file outside watched dir", zap.String("path", path), zap.Error(err))
		return
	}
	ref := storage.ObjectRef{Bucket: w.cfg.Bucket, Key: filepath.ToSlash(rel)}
	res, err := w.proc.Process(ctx, ref)
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(ref, res, err)
	}
}

// waitStable returns once two consecutive stats agree on size and mtime.
func (w *Watcher) waitStable(ctx context.Context, path string) error {
	var last os.FileInfo
	return retry.Do(
		func() error {
			info, err := os.Stat(path)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			prev := last
			last = info
			if prev == nil || prev.Size() != info.Size() || !prev.ModTime().Equal(info.ModTime()) {
				return errNotSettled
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(10),
		retry.Delay(w.cfg.Settle/4+time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func supported(path string) bool {
	_, err := media.Detect(path)
	return err == nil
}
