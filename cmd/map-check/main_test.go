package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"YEARS":["2021","2022"],"MAP_BOUNDS":[[-7.85,113.35],[-7.74,113.48]],"desaIds":["3513190007"]}`))
	})
	mux.HandleFunc("/api/sheet-data", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Nama,Desa,Tahun Anggaran,Latitude,Longitude\n" +
			"Jalan A,Krejengan,2021,-7.79,113.40\n" +
			"Drainase,Sentong,2022,-7.80,113.41\n"))
	})
	mux.HandleFunc("/api/place-data", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"Kode":5,"Keterangan":"Puskesmas Krejengan","Latitude":-7.79,"Longitude":113.39}]`))
	})
	mux.HandleFunc("/api/geojson/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestSummary(t *testing.T) {
	srv := fakeAPI(t)
	out, _, err := run(t, "--api", srv.URL+"/api", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "markers\t2 projects, 1 places")
	assert.Contains(t, out, "years\t2021, 2022")
	assert.Contains(t, out, "boundaries\t0 loaded, 1 failed")
}

func TestViewFilters(t *testing.T) {
	srv := fakeAPI(t)
	out, _, err := run(t, "--api", srv.URL+"/api", "view", "--year", "2022")
	require.NoError(t, err)
	assert.Contains(t, out, "matched\t1 (1 with coordinates)")
	assert.Contains(t, out, "Drainase\tSentong\t2022")
	assert.NotContains(t, out, "Jalan A")
}

func TestSearch(t *testing.T) {
	srv := fakeAPI(t)
	out, _, err := run(t, "--api", srv.URL+"/api", "search", "krejengan")
	require.NoError(t, err)
	assert.Contains(t, out, "project\tJalan A\tKrejengan")
	assert.Contains(t, out, "place\tPuskesmas Krejengan")

	out, _, err = run(t, "--api", srv.URL+"/api", "search", "bandara")
	require.NoError(t, err)
	assert.Contains(t, out, "Tidak ada hasil")
}

func TestInitFailurePrintsMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, errOut, err := run(t, "--api", srv.URL+"/api", "summary")
	require.Error(t, err)
	assert.Contains(t, errOut, "Failed to load map data: ")
	assert.Contains(t, errOut, "HTTP error! status: 404")
}
