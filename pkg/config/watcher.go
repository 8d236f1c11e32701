package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk.
type Watcher struct {
	fs   *fsnotify.Watcher
	path string
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// debounce skips the burst of events editors produce on save.
const debounce = 100 * time.Millisecond

// Watch calls onChange with a freshly loaded configuration
// every time the file at path changes, and onError on reload errors.
// The parent directory is watched, so atomic replaces are seen too.
func Watch(path string, onChange func(*Bridge), onError func(error)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{fs: fw, path: abs, done: make(chan struct{})}
	w.wg.Add(1)
	go w.loop(onChange, onError)
	return w, nil
}

func (w *Watcher) loop(onChange func(*Bridge), onError func(error)) {
	defer w.wg.Done()
	var timer <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer = time.After(debounce)
		case <-timer:
			timer = nil
			conf, _, err := Load(w.path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(conf)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
