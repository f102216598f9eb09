package batch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/borelg/10x15cm-Photo-Formatter/errors"
)

// settleDelay is how long a file must stay quiet after its last write event
// before it is processed. Cameras and sync tools write large photos in
// multiple chunks; processing on the first event would read a torso.
const settleDelay = 500 * time.Millisecond

// Watch processes files as they appear under inputDir until ctx is cancelled.
// New subdirectories are watched as they are created; the output directory is
// ignored. Each finished file is reported through the OnResult callback.
func (r *Runner) Watch(ctx context.Context, inputDir string) error {
	outputDir := r.OutputDir(inputDir)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "watch.new", err)
	}
	defer w.Close()

	if err := addRecursive(w, inputDir, outputDir); err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "watch.add", err)
	}
	r.logger.Info("watch.start", "input_dir", inputDir, "output_dir", outputDir)

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(settleDelay)
			return
		}
		timers[path] = time.AfterFunc(settleDelay, func() {
			mu.Lock()
			delete(timers, path)
			mu.Unlock()

			if ctx.Err() != nil {
				return
			}
			res := r.ProcessFile(ctx, path, outputDir)
			r.logResult(res)
			if r.onResult != nil {
				r.onResult(res)
			}
		})
	}

	absOutput, _ := filepath.Abs(outputDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if abs, _ := filepath.Abs(ev.Name); abs == absOutput {
					continue
				}
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					// A new directory needs its own watch; files dropped in
					// before the watch landed are picked up by a scan.
					if err := addRecursive(w, ev.Name, outputDir); err == nil {
						scanInto(ev.Name, outputDir, schedule)
					}
					continue
				}
			}
			if (ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write)) && IsCandidate(ev.Name) {
				schedule(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watch.error", "error", err.Error())
		}
	}
}

// addRecursive watches dir and all its subdirectories, skipping the output
// directory and hidden directories.
func addRecursive(w *fsnotify.Watcher, dir, exclude string) error {
	absExclude, _ := filepath.Abs(exclude)
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absExclude {
			return filepath.SkipDir
		}
		if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// scanInto schedules every existing candidate under dir.
func scanInto(dir, exclude string, schedule func(string)) {
	paths, err := Scan(dir, exclude)
	if err != nil {
		return
	}
	for _, p := range paths {
		schedule(p)
	}
}
