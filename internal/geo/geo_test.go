package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func polygonDoc(name string, w, s, e, n float64) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{"DESA":%q},"geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
		name, w, s, e, s, e, n, w, n, w, s)
}

func TestParseBoundaryShapes(t *testing.T) {
	feature := polygonDoc("Krejengan", 113.40, -7.80, 113.42, -7.78)
	collection := `{"type":"FeatureCollection","features":[` + feature + `,` + polygonDoc("Sentong", 113.43, -7.82, 113.45, -7.79) + `]}`
	bare := `{"type":"MultiPolygon","coordinates":[[[[113.40,-7.80],[113.42,-7.80],[113.42,-7.78],[113.40,-7.80]]]]}`

	b, err := ParseBoundary("3513190007", []byte(feature))
	require.NoError(t, err)
	assert.Equal(t, []string{"Krejengan"}, b.Names)
	p := b.Bounds.Pairs()
	require.Len(t, p, 2)
	assert.InDelta(t, -7.80, p[0][0], 1e-9)
	assert.InDelta(t, 113.40, p[0][1], 1e-9)
	assert.InDelta(t, -7.78, p[1][0], 1e-9)
	assert.InDelta(t, 113.42, p[1][1], 1e-9)

	b, err = ParseBoundary("all", []byte(collection))
	require.NoError(t, err)
	assert.Len(t, b.Geometries, 2)
	assert.InDelta(t, 113.45, b.Bounds.Pairs()[1][1], 1e-9)
	assert.True(t, b.Bounds.Contains(-7.81, 113.44))

	b, err = ParseBoundary("bare", []byte(bare))
	require.NoError(t, err)
	assert.Len(t, b.Geometries, 1)
	assert.Empty(t, b.Names)
}

func TestParseBoundaryEmpty(t *testing.T) {
	_, err := ParseBoundary("x", []byte(`{"type":"FeatureCollection","features":[]}`))
	assert.ErrorIs(t, err, ErrEmptyGeometry)

	_, err = ParseBoundary("x", []byte(`{"type":"Feature","properties":{},"geometry":null}`))
	assert.ErrorIs(t, err, ErrEmptyGeometry)

	_, err = ParseBoundary("x", []byte(`not json`))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrEmptyGeometry))
}

func TestBoundsJSON(t *testing.T) {
	b := FromPairs([][2]float64{{-7.85, 113.35}, {-7.74, 113.48}})
	out, err := json.Marshal(b)
	require.NoError(t, err)
	var pairs [][2]float64
	require.NoError(t, json.Unmarshal(out, &pairs))
	assert.InDelta(t, -7.85, pairs[0][0], 1e-9)
	assert.InDelta(t, 113.48, pairs[1][1], 1e-9)

	var back Bounds
	require.NoError(t, json.Unmarshal(out, &back))
	assert.True(t, back.Contains(-7.8, 113.4))
	assert.False(t, back.Contains(-7.0, 113.4))

	out, err = json.Marshal(EmptyBounds())
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
	assert.True(t, Bounds{}.IsEmpty())
}

func TestBoundsUnionAndCenter(t *testing.T) {
	a := FromPairs([][2]float64{{-7.8, 113.4}, {-7.7, 113.5}})
	assert.Equal(t, a, a.Union(Bounds{}))
	assert.Equal(t, a, Bounds{}.Union(a))
	u := a.Union(FromPairs([][2]float64{{-7.9, 113.3}}))
	c := u.Center()
	assert.InDelta(t, -7.8, c[0], 1e-9)
	assert.InDelta(t, 113.4, c[1], 1e-9)
}

type mapFetcher struct {
	docs  map[string]string
	calls atomic.Int32
}

func (m *mapFetcher) FetchBoundary(_ context.Context, id string) ([]byte, error) {
	m.calls.Add(1)
	d, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("boundary %s: not found", id)
	}
	return []byte(d), nil
}

func TestLoadAllPartialSuccess(t *testing.T) {
	f := &mapFetcher{docs: map[string]string{
		"3513190007": polygonDoc("Krejengan", 113.40, -7.80, 113.42, -7.78),
		"3513190012": polygonDoc("Sentong", 113.43, -7.82, 113.45, -7.79),
		"3513190001": `{"type":"FeatureCollection","features":[]}`,
	}}
	cache := NewCache()
	l := NewLoader(f, cache, 2)
	rep := l.LoadAll(context.Background(), []string{"3513190007", "3513190012", "3513190001", "3513190099"})

	assert.Equal(t, []string{"3513190007", "3513190012"}, rep.Loaded)
	require.Len(t, rep.Failed, 2)
	assert.ErrorIs(t, rep.Failed["3513190001"], ErrEmptyGeometry)
	assert.False(t, rep.OK())
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, []string{"3513190007", "3513190012"}, cache.IDs())
	assert.EqualValues(t, 4, f.calls.Load())
	assert.True(t, cache.Extent().Contains(-7.81, 113.44))
}

func TestCacheLastWriteWins(t *testing.T) {
	c := NewCache()
	b1, err := ParseBoundary("a", []byte(polygonDoc("A", 113.40, -7.80, 113.42, -7.78)))
	require.NoError(t, err)
	b2, err := ParseBoundary("a", []byte(polygonDoc("A", 113.50, -7.90, 113.52, -7.88)))
	require.NoError(t, err)
	c.Put(b1)
	c.Put(b2)
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Same(t, b2, got)
	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLoadAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &mapFetcher{docs: map[string]string{"a": polygonDoc("A", 113.40, -7.80, 113.42, -7.78)}}
	rep := NewLoader(f, NewCache(), 1).LoadAll(ctx, []string{"a", "b"})
	assert.Empty(t, rep.Loaded)
	assert.Len(t, rep.Failed, 2)
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestLoadNumbered(t *testing.T) {
	f := &mapFetcher{docs: map[string]string{
		"1": polygonDoc("Dawuhan", 113.40, -7.80, 113.42, -7.78),
		"3": polygonDoc("Widoro", 113.43, -7.82, 113.45, -7.79),
	}}
	cache := NewCache()
	b, err := NewLoader(f, cache, 4).LoadNumbered(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, UnifiedID, b.ID)
	assert.Len(t, b.Geometries, 2)
	assert.Equal(t, []string{"Dawuhan", "Widoro"}, b.Names)
	assert.Zero(t, cache.Len())

	var raws []json.RawMessage
	require.NoError(t, json.Unmarshal(b.Raw, &raws))
	assert.Len(t, raws, 2)

	_, err = NewLoader(&mapFetcher{}, cache, 1).LoadNumbered(context.Background(), 2)
	assert.ErrorIs(t, err, ErrEmptyGeometry)
}
