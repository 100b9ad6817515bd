package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/metrics"
)

// SidecarSuffix is appended to an inbox file's base name for its output.
const SidecarSuffix = ".beaver.txt"

const debounceDelay = 500 * time.Millisecond

// WatcherStatus is reported by the health endpoint.
type WatcherStatus struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watch_dir"`
	FilesQueued    int64  `json:"files_queued"`
	FilesProcessed int64  `json:"files_processed"`
	FilesSkipped   int64  `json:"files_skipped"`
}

// FileWatcher monitors an inbox directory for new audio files and queues
// them on a WorkerPool. Each processed file gets a sidecar next to it.
type FileWatcher struct {
	pipeline *Pipeline
	pool     *WorkerPool
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// Debounce: coalesce rapid Create+Write events on the same file.
	// queued holds paths between enqueue and the end of Handle.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer
	queued         map[string]struct{}

	filesQueued    atomic.Int64
	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
	status         atomic.Value // string: "starting", "watching", "stopped"
}

// NewFileWatcher creates a watcher for dir backed by its own worker pool.
func NewFileWatcher(p *Pipeline, dir string, workers, queueSize int, log zerolog.Logger) *FileWatcher {
	fw := &FileWatcher{
		pipeline:       p,
		watchDir:       dir,
		log:            log.With().Str("component", "watcher").Logger(),
		debounceTimers: make(map[string]*time.Timer),
		queued:         make(map[string]struct{}),
	}
	fw.pool = NewWorkerPool(WorkerPoolOptions{
		Workers:   workers,
		QueueSize: queueSize,
		Handle:    fw.Handle,
		Log:       log,
	})
	fw.status.Store("starting")
	return fw
}

// Pool returns the worker pool serving this watcher.
func (fw *FileWatcher) Pool() *WorkerPool { return fw.pool }

// Start begins watching and queues any existing audio without a sidecar.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(fw.watchDir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(fw.watchDir); err != nil {
		w.Close()
		return fmt.Errorf("watch inbox dir: %w", err)
	}
	fw.watcher = w
	fw.ctx, fw.cancel = context.WithCancel(ctx)
	fw.done = make(chan struct{})

	fw.log.Info().Str("watch_dir", fw.watchDir).Msg("file watcher initialized")

	fw.pool.Start(fw.ctx)
	go fw.watchLoop()
	go fw.scanExisting()
	return nil
}

// Stop closes the fsnotify watcher, cancels pending debounce timers, and
// stops the worker pool. In-flight jobs are cancelled; files left without a
// sidecar are picked up by the next start's scan.
func (fw *FileWatcher) Stop() {
	fw.status.Store("stopped")
	if fw.cancel != nil {
		fw.cancel()
	}
	if fw.watcher != nil {
		fw.watcher.Close()
		<-fw.done
	}

	fw.debounceMu.Lock()
	for path, t := range fw.debounceTimers {
		t.Stop()
		delete(fw.debounceTimers, path)
	}
	fw.debounceMu.Unlock()

	if fw.done != nil {
		fw.pool.Stop()
	}

	fw.log.Info().
		Int64("files_processed", fw.filesProcessed.Load()).
		Int64("files_skipped", fw.filesSkipped.Load()).
		Msg("file watcher stopped")
}

// Status returns the current watcher status for the health endpoint.
func (fw *FileWatcher) Status() WatcherStatus {
	s, _ := fw.status.Load().(string)
	return WatcherStatus{
		Status:         s,
		WatchDir:       fw.watchDir,
		FilesQueued:    fw.filesQueued.Load(),
		FilesProcessed: fw.filesProcessed.Load(),
		FilesSkipped:   fw.filesSkipped.Load(),
	}
}

// Handle beaverifies one inbox file and writes its sidecar. It is the
// WorkerPool's JobFunc.
func (fw *FileWatcher) Handle(ctx context.Context, job Job) error {
	defer fw.release(job.Path)

	data, err := os.ReadFile(job.Path)
	if err != nil {
		return fmt.Errorf("read inbox file: %w", err)
	}
	res, err := fw.pipeline.Process(ctx, Upload{
		Filename: filepath.Base(job.Path),
		Data:     data,
		Mode:     job.Mode,
		Source:   "inbox",
	})
	if err != nil {
		return err
	}
	sidecar := SidecarPath(job.Path)
	if err := os.WriteFile(sidecar, []byte(res.Beaverified), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	fw.filesProcessed.Add(1)
	fw.log.Debug().Str("path", job.Path).Str("sidecar", sidecar).Str("id", res.ID).Msg("inbox file beaverified")
	return nil
}

// SidecarPath returns the output path for an inbox audio file.
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + SidecarSuffix
}

// isInboxAudio reports whether name has an accepted audio extension.
func isInboxAudio(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".mp3", ".m4a":
		return true
	}
	return false
}

func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)
	fw.status.Store("watching")
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isInboxAudio(event.Name) {
				continue
			}
			fw.scheduleProcess(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces file processing so the file is fully written
// before it is read.
func (fw *FileWatcher) scheduleProcess(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(debounceDelay)
		return
	}

	fw.debounceTimers[path] = time.AfterFunc(debounceDelay, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.enqueue(path)
	})
}

func (fw *FileWatcher) enqueue(path string) {
	if fw.ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(SidecarPath(path)); err == nil {
		fw.filesSkipped.Add(1)
		return
	}
	if !fw.claim(path) {
		fw.filesSkipped.Add(1)
		return
	}
	if !fw.pool.Enqueue(Job{Path: path}) {
		fw.release(path)
		fw.filesSkipped.Add(1)
		fw.log.Warn().Str("path", path).Msg("inbox queue full, file skipped")
		return
	}
	fw.filesQueued.Add(1)
	metrics.InboxFilesTotal.Inc()
}

// claim marks path as queued. It returns false when the path is already
// queued or being processed.
func (fw *FileWatcher) claim(path string) bool {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()
	if _, ok := fw.queued[path]; ok {
		return false
	}
	fw.queued[path] = struct{}{}
	return true
}

func (fw *FileWatcher) release(path string) {
	fw.debounceMu.Lock()
	delete(fw.queued, path)
	fw.debounceMu.Unlock()
}

// scanExisting queues audio already sitting in the inbox from before startup.
func (fw *FileWatcher) scanExisting() {
	entries, err := os.ReadDir(fw.watchDir)
	if err != nil {
		fw.log.Warn().Err(err).Msg("failed to scan inbox")
		return
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !isInboxAudio(e.Name()) {
			continue
		}
		fw.enqueue(filepath.Join(fw.watchDir, e.Name()))
		n++
	}
	if n > 0 {
		fw.log.Info().Int("files", n).Msg("inbox scan complete")
	}
}
