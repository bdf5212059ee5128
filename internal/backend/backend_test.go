package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"paman-dede/internal/config"
	"paman-dede/internal/record"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func upstream(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSheetProxyCachesInMemory(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, "Nama,Desa\nJalan A,Krejengan\n")
	p := NewSheetProxy(srv.URL, time.Second, time.Minute, nil)
	ctx := context.Background()

	b, err := p.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Nama,Desa\nJalan A,Krejengan\n", string(b))
	_, err = p.Fetch(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	p.Invalidate(ctx)
	_, err = p.Fetch(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSheetProxyWithoutTTL(t *testing.T) {
	srv, calls := upstream(t, http.StatusOK, "x")
	p := NewSheetProxy(srv.URL, 0, 0, nil)
	for i := 0; i < 3; i++ {
		_, err := p.Fetch(context.Background())
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, calls.Load())
}

func TestSheetProxyErrors(t *testing.T) {
	_, err := NewSheetProxy("", time.Second, time.Minute, nil).Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoSheetURL)

	srv, calls := upstream(t, http.StatusInternalServerError, "boom")
	p := NewSheetProxy(srv.URL, time.Second, time.Minute, nil)
	_, err = p.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	_, err = p.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSheetProxyRejectsOversizedBody(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, "Nama,Desa\nJalan A,Krejengan\n")
	p := NewSheetProxy(srv.URL, time.Second, time.Minute, nil)
	p.max = 8
	_, err := p.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, ErrTooLarge)

	// 超限结果不进入缓存
	p.max = maxSheetBytes
	b, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Nama,Desa\nJalan A,Krejengan\n", string(b))
}

func TestSheetProxyBodyAtLimit(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, "12345678")
	p := NewSheetProxy(srv.URL, time.Second, 0, nil)
	p.max = 8
	b, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(b))
}

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	p := filepath.Join(t.TempDir(), "place-data.xlsx")
	require.NoError(t, f.SaveAs(p))
	return p
}

func TestReadPlacesXLSX(t *testing.T) {
	p := writeXLSX(t, [][]any{
		{"Kode", "Keterangan", "Deskripsi", "Latitude", "Longitude"},
		{1, "Balai Desa Sentong", "Balai", -7.78, 113.39},
		{},
		{5, "Puskesmas", "", "-7,79", "113,40"},
		{"x", "Warung"},
	})
	ps, err := PlaceFile{Path: p}.ReadPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, 1, ps[0].Code)
	assert.Equal(t, "Balai Desa Sentong", ps[0].Label)
	assert.True(t, ps[0].HasCoords)
	assert.InDelta(t, -7.79, ps[1].Lat, 1e-9)
	assert.Equal(t, 0, ps[2].Code)
	assert.False(t, ps[2].HasCoords)
}

func TestReadPlacesXLSXMissingColumns(t *testing.T) {
	p := writeXLSX(t, [][]any{{"Nama", "Latitude"}, {"Pos", -7.7}})
	_, err := ReadPlacesXLSX(p)
	assert.ErrorIs(t, err, record.ErrMissingColumn)
}

func TestReadPlacesJSONAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "place-data.json")
	require.NoError(t, os.WriteFile(p, []byte(`[{"Kode":7,"Keterangan":"Warung Makan","Latitude":-7.8,"Longitude":113.4}]`), 0o644))
	ps, err := PlaceFile{Path: p}.ReadPlaces(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, 7, ps[0].Code)

	_, err = PlaceFile{Path: filepath.Join(dir, "place.csv")}.ReadPlaces(context.Background())
	assert.Error(t, err)
	_, err = ReadPlacesJSON(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

type listerFunc func(context.Context) ([]record.PlaceRecord, error)

func (f listerFunc) ListPlaces(ctx context.Context) ([]record.PlaceRecord, error) { return f(ctx) }

func TestPlaceDB(t *testing.T) {
	db := PlaceDB{Store: listerFunc(func(context.Context) ([]record.PlaceRecord, error) {
		return []record.PlaceRecord{{Code: 2, Label: "Kantor Desa"}}, nil
	})}
	ps, err := db.ReadPlaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Kantor Desa", ps[0].Label)
}

func TestGeoDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3513190007.geojson"), []byte(`{"type":"Point","coordinates":[113.4,-7.8]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))
	g := GeoDir{Dir: dir}

	b, err := g.Read(context.Background(), "3513190007")
	require.NoError(t, err)
	assert.Contains(t, string(b), "Point")

	for _, id := range []string{"3513190099", "../etc/passwd", "", ".hidden", "a/b"} {
		_, err := g.Read(context.Background(), id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}

	ids, err := g.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"3513190007"}, ids)

	id, ok := IDFromPath("/data/geojson/3513190012.GEOJSON")
	assert.True(t, ok)
	assert.Equal(t, "3513190012", id)
	_, ok = IDFromPath("/data/geojson/notes.md")
	assert.False(t, ok)
}

func TestLocalSource(t *testing.T) {
	srv, _ := upstream(t, http.StatusOK, "Nama;Desa\n")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.geojson"), []byte(`{}`), 0o644))
	placesPath := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(placesPath, []byte(`[]`), 0o644))

	l := &Local{
		Cfg:    &config.Config{YearsRaw: "2021,2022", MapBoundsRaw: "[[-7.85,113.35],[-7.74,113.48]]", DesaIDsRaw: "1"},
		Sheet:  NewSheetProxy(srv.URL, time.Second, 0, nil),
		Places: PlaceFile{Path: placesPath},
		Geo:    GeoDir{Dir: dir},
	}
	ctx := context.Background()
	mc, err := l.FetchConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, mc.DesaIDs)
	raw, err := l.FetchSheet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Nama;Desa\n", string(raw))
	ps, err := l.FetchPlaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, ps)
	_, err = l.FetchBoundary(ctx, "1")
	require.NoError(t, err)
}

func TestWatchBoundaries(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan BoundaryChange, 1024)
	done := make(chan error, 1)
	go func() {
		done <- WatchBoundaries(ctx, dir, func(c BoundaryChange) { changes <- c })
	}()

	p := filepath.Join(dir, "3513190007.geojson")
	var got BoundaryChange
	require.Eventually(t, func() bool {
		_ = os.WriteFile(p, []byte(`{}`), 0o644)
		select {
		case got = <-changes:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "3513190007", got.ID)
	assert.False(t, got.Removed)

	require.NoError(t, os.Remove(p))
	deadline := time.After(2 * time.Second)
	for removed := false; !removed; {
		select {
		case c := <-changes:
			removed = c.Removed && c.ID == "3513190007"
		case <-deadline:
			t.Fatal("no remove event")
		}
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchBoundariesMissingDir(t *testing.T) {
	err := WatchBoundaries(context.Background(), filepath.Join(t.TempDir(), "nope"), func(BoundaryChange) {})
	assert.Error(t, err)
}
