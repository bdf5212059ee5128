package marker

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paman-dede/internal/record"
)

func projects() []record.ProjectRecord {
	return []record.ProjectRecord{
		{Name: "Jalan A", Village: "Krejengan", Year: "2021", Lat: -7.79, Lng: 113.40, HasCoords: true, Row: 1},
		{Name: "Jalan B", Village: "Sentong", Year: "2022", Lng: 113.41, Row: 2},
		{Name: "Drainase", Village: "Sentong", Year: "2022", Lat: -7.80, Lng: 113.41, HasCoords: true, Row: 3},
		{Name: "Sumur", Village: "Rawan", Year: "2019", Lat: -7.81, Lng: 113.42, HasCoords: true, Row: 4},
	}
}

func TestRenderProjectsIsIdempotent(t *testing.T) {
	e := NewEngine([]string{"2021", "2022", "2023"})
	ps := projects()
	assert.Equal(t, 3, e.RenderProjects(ps))
	assert.Equal(t, 3, e.RenderProjects(ps))
	assert.Equal(t, 3, e.Projects().Len())

	y21, ok := e.Year("2021")
	require.True(t, ok)
	assert.Equal(t, 1, y21.Len())
	y22, _ := e.Year("2022")
	assert.Equal(t, 1, y22.Len())
	y23, _ := e.Year("2023")
	assert.Zero(t, y23.Len())
	_, ok = e.Year("2019")
	assert.False(t, ok)
}

func TestRenderProjectsReplacesPreviousSet(t *testing.T) {
	e := NewEngine([]string{"2021", "2022"})
	e.RenderProjects(projects())
	assert.Equal(t, 1, e.RenderProjects(projects()[:1]))

	var ids []string
	for _, m := range e.Projects().Markers() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"project-1"}, ids)
	y22, _ := e.Year("2022")
	assert.Zero(t, y22.Len())

	assert.Zero(t, e.RenderProjects(nil))
}

func TestConcreteScenarioSingleMarker(t *testing.T) {
	e := NewEngine([]string{"2021", "2022"})
	assert.Equal(t, 1, e.RenderProjects(projects()[:2]))
	m := e.Projects().Markers()[0]
	want := Marker{
		ID:      "project-1",
		Kind:    KindProject,
		Lat:     -7.79,
		Lng:     113.40,
		Icon:    Icon{URL: "/png/E0A9.png", Size: [2]int{25, 25}, Anchor: [2]int{12, 12}, PopupAnchor: [2]int{1, -34}},
		Popup:   Popup{Title: "Jalan A", Village: "Krejengan", Year: "2021"},
		Year:    "2021",
		Village: "Krejengan",
		Geohash: m.Geohash,
		Scale:   1,
		Opacity: 1,
	}
	assert.Empty(t, cmp.Diff(want, m, cmp.AllowUnexported(Marker{})))
	assert.Len(t, m.Geohash, 12)
}

func TestPopupOmitsEmptyFields(t *testing.T) {
	m, ok := FromProject(record.ProjectRecord{Name: "Gorong", Village: "Widoro", Lat: -7.8, Lng: 113.4, HasCoords: true})
	require.True(t, ok)
	assert.Equal(t, "Tidak diketahui", m.Popup.Year)

	b, err := json.Marshal(m.Popup)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Gorong","desa":"Widoro","tahun":"Tidak diketahui"}`, string(b))

	p, ok := FromPlace(record.PlaceRecord{Code: 5, Label: "Puskesmas", Lat: -7.8, Lng: 113.4, HasCoords: true}, 0)
	require.True(t, ok)
	b, err = json.Marshal(p.Popup)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Puskesmas"}`, string(b))
}

func TestPlaceIcons(t *testing.T) {
	cases := map[int]string{
		1: "./png/balai.png", 2: "./png/kantor.png", 3: "./png/koramil.png", 4: "./png/polisi.png",
		5: "./png/puskesmas.png", 6: "./png/kua.png", 7: "./png/garpu.png", 0: "./default.png", 42: "./default.png",
	}
	for code, want := range cases {
		assert.Equal(t, want, PlaceIconURL(code), code)
	}
}

func TestRenderPlaces(t *testing.T) {
	e := NewEngine(nil)
	places := []record.PlaceRecord{
		{Code: 1, Label: "Balai Desa", Lat: -7.78, Lng: 113.39, HasCoords: true},
		{Code: 9, Label: "Tanpa koordinat"},
		{Code: 9, Label: "Pos", Lat: -7.77, Lng: 113.38, HasCoords: true},
	}
	assert.Equal(t, 2, e.RenderPlaces(places))
	assert.Equal(t, 2, e.RenderPlaces(places))
	ms := e.Places().Markers()
	assert.Equal(t, "place-0", ms[0].ID)
	assert.Equal(t, "place-2", ms[1].ID)
	assert.Equal(t, "./default.png", ms[1].Icon.URL)
}

func TestHoverRestoresPreviousOffset(t *testing.T) {
	l := NewLayer("t")
	l.Add(Marker{ID: "a", ZIndex: 7, Scale: 1})
	require.True(t, l.Hover("a", true))
	require.True(t, l.Hover("a", true))
	m, _ := l.Get("a")
	assert.Equal(t, HoverZIndex, m.ZIndex)
	assert.True(t, m.PopupOpen)
	assert.Equal(t, HoverScale, m.Scale)

	require.True(t, l.Hover("a", false))
	m, _ = l.Get("a")
	assert.Equal(t, 7, m.ZIndex)
	assert.False(t, m.PopupOpen)
	assert.Equal(t, 1.0, m.Scale)

	assert.False(t, l.Hover("missing", true))
}

func TestEngineHoverSyncsYearLayer(t *testing.T) {
	e := NewEngine([]string{"2021"})
	e.RenderProjects(projects())
	require.True(t, e.Hover("project-1", true))
	y, _ := e.Year("2021")
	m, _ := y.Get("project-1")
	assert.True(t, m.PopupOpen)
	assert.False(t, e.Hover("project-99", true))
}

func TestLayerAddDeduplicates(t *testing.T) {
	l := NewLayer("t")
	l.Add(Marker{ID: "a", Lat: 1})
	l.Add(Marker{ID: "a", Lat: 2})
	assert.Equal(t, 1, l.Len())
	m, _ := l.Get("a")
	assert.Equal(t, 2.0, m.Lat)
}

func TestClusters(t *testing.T) {
	l := NewLayer("t")
	l.Add(Marker{ID: "a", Lat: -7.7901, Lng: 113.4001})
	l.Add(Marker{ID: "b", Lat: -7.7903, Lng: 113.4003})
	l.Add(Marker{ID: "c", Lat: -6.2, Lng: 106.8})

	cs := l.Clusters(5)
	require.Len(t, cs, 2)
	assert.Equal(t, 2, cs[0].Count)
	assert.Equal(t, []string{"a", "b"}, cs[0].IDs)
	assert.InDelta(t, -7.7902, cs[0].Lat, 1e-9)
	assert.Len(t, cs[0].Geohash, 5)
	assert.LessOrEqual(t, cs[0].Box[0], -7.7903)
	assert.GreaterOrEqual(t, cs[0].Box[2], -7.7901)

	all := l.Clusters(0)
	assert.Len(t, all[0].Geohash, 1)
	assert.Len(t, l.Clusters(99)[0].Geohash, 12)
}

func TestYearOpacity(t *testing.T) {
	e := NewEngine([]string{"2021", "2022"})
	ps := append(projects(), record.ProjectRecord{Name: "Gorong", Village: "Rawan", Lat: -7.82, Lng: 113.43, HasCoords: true, Row: 5})
	e.RenderProjects(ps)
	for _, m := range e.Projects().Markers() {
		assert.Equal(t, 1.0, m.Opacity, m.ID)
	}

	assert.Equal(t, 1, e.SetOpacity("2022", 0.3))
	got := map[string]float64{}
	for _, m := range e.Projects().Markers() {
		got[m.ID] = m.Opacity
	}
	assert.Equal(t, map[string]float64{"project-1": 1, "project-3": 0.3, "project-4": 1, "project-5": 1}, got)
	y22, _ := e.Year("2022")
	assert.Equal(t, 0.3, y22.Markers()[0].Opacity)

	// 重绘后仍保留
	e.RenderProjects(ps)
	m, ok := e.Projects().Get("project-3")
	require.True(t, ok)
	assert.Equal(t, 0.3, m.Opacity)

	// 空年份与 UnknownYear 同组；超出范围的值被截断
	assert.Equal(t, 1, e.SetOpacity(UnknownYear, -2))
	m, _ = e.Projects().Get("project-5")
	assert.Zero(t, m.Opacity)
	e.SetOpacity("2021", 7)
	assert.Equal(t, 1.0, e.Opacity("2021"))
	assert.Zero(t, e.Opacity(""))
	assert.Equal(t, 1.0, e.Opacity("2030"))
	assert.Len(t, e.Opacities(), 3)
}

func TestPlacesIgnoreYearOpacity(t *testing.T) {
	e := NewEngine(nil)
	e.RenderPlaces([]record.PlaceRecord{{Code: 1, Label: "Balai", Lat: -7.78, Lng: 113.38, HasCoords: true}})
	e.SetOpacity(UnknownYear, 0)
	assert.Equal(t, 1.0, e.Places().Markers()[0].Opacity)
}
