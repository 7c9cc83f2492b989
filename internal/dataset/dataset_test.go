package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshlens/internal/lens"
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

func sampleGroup() match.Group {
	p := []geometry.Point2D{{X: 10, Y: 20}, {X: 50, Y: 50}}
	return match.Group{
		Tiles: []match.Tile{
			{ID: "a", Width: 100, Height: 80},
			{ID: "b", Width: 100, Height: 80, InitialX: 90},
		},
		Matches: []match.PointMatch{{
			TileA: "a", TileB: "b",
			PointsA: p,
			PointsB: []geometry.Point2D{{X: 0, Y: 20}, {X: 40, Y: 50}},
			Weights: []float64{1, 0.5},
		}},
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "section.lens.json")

	f := New("section 12", sampleGroup())
	f.SetMesh(path, filepath.Join(dir, "meshes", "shared.json"))
	require.NoError(t, f.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, got.Version)
	assert.Equal(t, "section 12", got.Name)
	assert.Equal(t, sampleGroup(), got.Group)
	assert.True(t, got.Created.Equal(f.Created))
	assert.Equal(t, filepath.Join("meshes", "shared.json"), got.MeshPath)
	assert.Equal(t, filepath.Join(dir, "meshes", "shared.json"), got.GetMeshPath(path))
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	f := New("x", match.Group{})
	assert.Equal(t, "", f.GetMeshPath("/data/g.json"))
	f.MeshPath = "/abs/mesh.json"
	assert.Equal(t, "/abs/mesh.json", f.GetMeshPath("/data/g.json"))
	assert.Equal(t, "/data/g_result.json", DefaultResultPath("/data/g.json"))
}

func TestMeshRoundTrip(t *testing.T) {
	m, _ := mesh.Triangulate(mesh.Domain{
		Bounds: geometry.NewRect(0, 0, 100, 80),
		Hole:   geometry.NewRect(40, 30, 20, 20).Corners(),
	}, 300, 0)
	path := filepath.Join(t.TempDir(), "mesh.json")
	require.NoError(t, SaveMesh(path, m))

	got, err := LoadMesh(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestLoadMeshRejectsBadTriangles(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"empty.json": `{"width": 10, "height": 10, "vertices": [], "triangles": []}`,
		"range.json": `{"width": 10, "height": 10, "vertices": [{"x":0,"y":0}], "triangles": [[0, 1, 2]]}`,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := LoadMesh(path)
		assert.Error(t, err, name)
	}
}

func TestResultRoundTrip(t *testing.T) {
	res := &lens.Result{
		Solution: lens.Solution{X: []float64{1, 0, 0, 0.25}, Y: []float64{0, 1, 0, -0.5}},
		Diagnostics: lens.Diagnostics{
			ErrorMean: 0.1,
			ErrorStd:  0.05,
			Scales:    []float64{1},
			Pairs:     12,
		},
		Warnings: []*lenserr.Error{lenserr.New(lenserr.CodeInsufficientObservations, "support 2 below 3")},
	}
	path := filepath.Join(t.TempDir(), "result.json")
	quality := lenserr.New(lenserr.CodePoorSolveQuality, "residual mean too high")
	require.NoError(t, SaveResult(path, "g", res, quality))

	got, err := LoadResult(path)
	require.NoError(t, err)
	assert.Equal(t, "g", got.Group)
	assert.Equal(t, quality.Error(), got.Quality)
	assert.Equal(t, res.Solution, got.Result.Solution)
	assert.Equal(t, res.Diagnostics, got.Result.Diagnostics)
	require.Len(t, got.Result.Warnings, 1)
	assert.Equal(t, lenserr.CodeInsufficientObservations, got.Result.Warnings[0].Code)

	require.NoError(t, SaveResult(path, "g", res, nil))
	got, err = LoadResult(path)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Quality)
}

func TestSaveRejectsNonFinite(t *testing.T) {
	res := &lens.Result{Diagnostics: lens.Diagnostics{Condition: math.Inf(1)}}
	assert.Error(t, SaveResult(filepath.Join(t.TempDir(), "r.json"), "g", res, nil))
}
