package backend

import (
	"context"

	"paman-dede/internal/config"
	"paman-dede/internal/record"
)

// Local：进程内的数据来源，会话直接读取本服务的配置与文件
type Local struct {
	Cfg    *config.Config
	Sheet  *SheetProxy
	Places PlaceReader
	Geo    GeoDir
}

func (l *Local) FetchConfig(_ context.Context) (*config.MapConfig, error) {
	return l.Cfg.MapConfig()
}

func (l *Local) FetchSheet(ctx context.Context) ([]byte, error) {
	return l.Sheet.Fetch(ctx)
}

func (l *Local) FetchPlaces(ctx context.Context) ([]record.PlaceRecord, error) {
	return l.Places.ReadPlaces(ctx)
}

func (l *Local) FetchBoundary(ctx context.Context, id string) ([]byte, error) {
	return l.Geo.Read(ctx, id)
}
