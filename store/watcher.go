package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/estateops/taskdesk/internal/logger"
)

// debounce window for bursts of write/rename events on the data file
const watchSettle = 200 * time.Millisecond

// WatchDataFile reloads the resident cache whenever an external writer
// replaces the collection document, e.g. a restore script run next to a
// long-lived server. The watcher observes the parent directory because
// atomic saves replace the file by rename. It blocks until ctx is done.
func (s *FileTaskStore) WatchDataFile(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	log := logger.Get()
	var timer *time.Timer
	reload := func() {
		// The store's own atomic saves land here too; ReloadIfChanged drops
		// them by content checksum so only external writers cost a re-parse.
		changed, err := s.ReloadIfChanged()
		if err != nil {
			log.Error().Err(err).Str("dataFile", s.filePath).Msg("reload after external change failed")
			return
		}
		if changed {
			log.Info().Str("dataFile", s.filePath).Msg("reloaded collection after external change")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.filePath) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchSettle, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("data file watcher error")
		}
	}
}
