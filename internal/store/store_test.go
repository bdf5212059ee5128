package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paman-dede/internal/migrate"
	"paman-dede/internal/record"
)

func TestPlaceCoords(t *testing.T) {
	lat, lng, ok := placeCoords(sql.NullFloat64{Float64: -7.8, Valid: true}, sql.NullFloat64{Float64: 113.4, Valid: true})
	assert.True(t, ok)
	assert.Equal(t, -7.8, lat)
	assert.Equal(t, 113.4, lng)

	_, _, ok = placeCoords(sql.NullFloat64{}, sql.NullFloat64{Float64: 113.4, Valid: true})
	assert.False(t, ok)
	_, _, ok = placeCoords(sql.NullFloat64{Float64: 200, Valid: true}, sql.NullFloat64{Float64: 113.4, Valid: true})
	assert.False(t, ok)

	assert.False(t, nullCoord(record.PlaceRecord{}, 1).Valid)
}

// 需要 PG_TEST_DSN 指向一个可写的空库
func TestReplaceAndListPlaces(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	s := AttachDB(db)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, migrate.EnsureSchema(ctx, db))

	in := []record.PlaceRecord{
		{Code: 5, Label: "Puskesmas", Lat: -7.79, Lng: 113.39, HasCoords: true},
		{Code: 1, Label: "Balai Desa"},
	}
	n, err := s.ReplacePlaces(ctx, "test", in)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.ListPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	at, rows, err := s.LastImport(ctx)
	require.NoError(t, err)
	assert.False(t, at.IsZero())
	assert.Equal(t, 2, rows)
}
