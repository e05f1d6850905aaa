// internal/camera/dir.go
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/tamzrod/carlink/internal/framequeue"
)

// Dir offers every *.nv21 file that appears in a directory.
// Files whose size is not exactly one frame are skipped; a later write
// event retries them, so producers may write in place or rename into the
// directory.
type Dir struct {
	Path   string
	Width  int
	Height int
	Log    *zap.Logger
}

func (d *Dir) Run(ctx context.Context, sink Sink) error {
	if d.Width <= 0 || d.Height <= 0 {
		return errors.New("camera: dir source needs width and height")
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := os.Stat(d.Path); err != nil {
		return fmt.Errorf("camera: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("camera: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(d.Path); err != nil {
		return fmt.Errorf("camera: watch %s: %w", d.Path, err)
	}
	log.Info("watching frame directory", zap.String("dir", d.Path))

	seen := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".nv21") {
				continue
			}
			d.offer(ev.Name, sink, seen, log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("frame watcher error", zap.Error(err))
		}
	}
}

func (d *Dir) offer(path string, sink Sink, seen map[string]time.Time, log *zap.Logger) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	if fi.Size() != int64(FrameSize(d.Width, d.Height)) {
		return
	}
	if last, ok := seen[path]; ok && !fi.ModTime().After(last) {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Debug("frame read failed", zap.String("file", path), zap.Error(err))
		return
	}
	if len(data) != FrameSize(d.Width, d.Height) {
		return
	}

	seen[path] = fi.ModTime()
	if !sink.Offer(framequeue.Frame{Data: data, Width: d.Width, Height: d.Height}) {
		log.Debug("frame rejected", zap.String("file", path))
	}
}
