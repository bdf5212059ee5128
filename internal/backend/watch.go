package backend

import (
	"context"

	"github.com/fsnotify/fsnotify"

	"paman-dede/internal/logger"
)

// BoundaryChange：id 对应文件被写入（Removed=false）或删除/改名（Removed=true）
type BoundaryChange struct {
	ID      string
	Removed bool
}

// WatchBoundaries：监听目录并回调变更，ctx 结束时返回
// 约束：只处理 .geojson；回调在监听协程内同步执行
func WatchBoundaries(ctx context.Context, dir string, onChange func(BoundaryChange)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log := logger.For("boundary_watch")
	log.Info("boundary_watch_start", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, valid := IDFromPath(ev.Name)
			if !valid {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				log.Info("boundary_file_removed", "id", id)
				onChange(BoundaryChange{ID: id, Removed: true})
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				log.Info("boundary_file_changed", "id", id)
				onChange(BoundaryChange{ID: id})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("boundary_watch_error", "err", err)
		}
	}
}
