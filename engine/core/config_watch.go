package core

import (
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher reloads a config file whenever it is written.
type ConfigWatcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
	stopped  chan struct{}
}

// WatchConfig starts watching path. The directory is watched rather than the
// file so editors that replace the file on save keep working.
func WatchConfig(path string, onChange func(*Config)) (*ConfigWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config watcher")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatch.Close()
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, errors.Wrapf(err, "failed to watch '%s'", abs)
	}

	cw := &ConfigWatcher{
		path:     abs,
		fsnotify: fsWatch,
		onChange: onChange,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go cw.start()
	return cw, nil
}

func (cw *ConfigWatcher) start() {
	defer close(cw.stopped)
	for {
		select {
		case e, ok := <-cw.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != cw.path {
				continue
			}
			// Handle create or modify events
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := LoadConfig(cw.path)
			if err != nil {
				LogWarn("config reload skipped: %s", err)
				continue
			}
			if err := LogConfigure(cfg.Log); err != nil {
				LogWarn("invalid log level '%s': %s", cfg.Log.Level, err)
			}
			LogInfo("config reloaded from %s", cw.path)
			if cw.onChange != nil {
				cw.onChange(cfg)
			}

		case err, ok := <-cw.fsnotify.Errors:
			if !ok {
				return
			}
			LogError(err.Error())

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) Close() error {
	close(cw.done)
	<-cw.stopped
	return cw.fsnotify.Close()
}
