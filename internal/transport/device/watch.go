package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kailas-cloud/vecsnap/internal/domain"
)

// DefaultSettle is how long a new file must stay quiet before it is read.
const DefaultSettle = 300 * time.Millisecond

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// WatchDir captures image files written into a drop folder, e.g. one a
// camera app or phone sync saves into. The directory is watched from the
// first Acquire until Close; files that settle meanwhile are queued and
// handed out one per Acquire, oldest first. Use it through a pointer.
type WatchDir struct {
	Dir    string
	Settle time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	queue   []string
	err     error // delivered to the next Acquire
	closed  bool
	ready   chan struct{}
}

// Acquire returns the bytes of the next settled image file. Files present
// before the first call are ignored.
func (w *WatchDir) Acquire(ctx context.Context) ([]byte, error) {
	if err := w.start(); err != nil {
		return nil, err
	}
	for {
		path, err := w.next(ctx)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			// removed, renamed or truncated after settling
			continue
		}
		return data, nil
	}
}

// Close stops watching. Pending and later Acquire calls fail with
// ErrCaptureUnavailable.
func (w *WatchDir) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.signal()
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Close()
}

func (w *WatchDir) start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("%w: watcher closed", domain.ErrCaptureUnavailable)
	}
	if w.watcher != nil {
		return nil
	}

	info, err := os.Stat(w.Dir)
	if err != nil {
		return classify(w.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrCaptureUnavailable, w.Dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create watcher: %w", domain.ErrCaptureUnavailable, err)
	}
	if err := watcher.Add(w.Dir); err != nil {
		_ = watcher.Close()
		return classify(w.Dir, err)
	}

	if w.ready == nil {
		w.ready = make(chan struct{}, 1)
	}
	w.watcher = watcher
	go w.run(watcher)
	return nil
}

func (w *WatchDir) next(ctx context.Context) (string, error) {
	for {
		w.mu.Lock()
		switch {
		case len(w.queue) > 0:
			path := w.queue[0]
			w.queue = w.queue[1:]
			if len(w.queue) > 0 {
				w.signal()
			}
			w.mu.Unlock()
			return path, nil
		case w.closed:
			w.mu.Unlock()
			return "", fmt.Errorf("%w: watcher closed", domain.ErrCaptureUnavailable)
		case w.err != nil:
			err := w.err
			w.err = nil
			w.mu.Unlock()
			return "", err
		}
		ready := w.ready
		w.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", domain.ErrCaptureAborted, ctx.Err())
		case <-ready:
		}
	}
}

// signal wakes one waiting Acquire. Callers hold mu.
func (w *WatchDir) signal() {
	select {
	case w.ready <- struct{}{}:
	default:
	}
}

type pendingFile struct {
	path     string
	deadline time.Time
	seq      uint64
}

// run debounces events per path and queues each file once it has been
// quiet for the settle period. It owns the pending set.
func (w *WatchDir) run(watcher *fsnotify.Watcher) {
	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}

	pending := make(map[string]*pendingFile)
	var seq uint64
	var timer *time.Timer
	var fire <-chan time.Time

	reschedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, fire = nil, nil
		var earliest time.Time
		for _, p := range pending {
			if earliest.IsZero() || p.deadline.Before(earliest) {
				earliest = p.deadline
			}
		}
		if !earliest.IsZero() {
			timer = time.NewTimer(time.Until(earliest))
			fire = timer.C
		}
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				w.stopped(watcher)
				return
			}
			if !isImageEvent(event) {
				continue
			}
			if p, ok := pending[event.Name]; ok {
				p.deadline = time.Now().Add(settle)
			} else {
				seq++
				pending[event.Name] = &pendingFile{path: event.Name, deadline: time.Now().Add(settle), seq: seq}
			}
			reschedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				w.stopped(watcher)
				return
			}
			w.mu.Lock()
			w.err = fmt.Errorf("%w: watch %s: %w", domain.ErrCaptureUnavailable, w.Dir, err)
			w.signal()
			w.mu.Unlock()
		case <-fire:
			now := time.Now()
			var due []*pendingFile
			for path, p := range pending {
				if !p.deadline.After(now) {
					due = append(due, p)
					delete(pending, path)
				}
			}
			sort.Slice(due, func(i, j int) bool {
				if due[i].deadline.Equal(due[j].deadline) {
					return due[i].seq < due[j].seq
				}
				return due[i].deadline.Before(due[j].deadline)
			})
			if len(due) > 0 {
				w.mu.Lock()
				for _, p := range due {
					w.queue = append(w.queue, p.path)
				}
				w.signal()
				w.mu.Unlock()
			}
			reschedule()
		}
	}
}

// stopped clears a watcher whose channels were closed so the next Acquire
// can start a new one.
func (w *WatchDir) stopped(watcher *fsnotify.Watcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == watcher {
		w.watcher = nil
		w.err = fmt.Errorf("%w: watcher closed", domain.ErrCaptureUnavailable)
		w.signal()
	}
}

func isImageEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExts[strings.ToLower(filepath.Ext(base))]
}
