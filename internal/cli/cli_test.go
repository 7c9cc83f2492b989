package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshlens/internal/dataset"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "meshlens")
}

func TestSynthSolveMesh(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "lens.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("nvertex = 40\npolynomial_degree = 2\n"), 0o644))
	group := filepath.Join(dir, "g.json")

	_, err := run(t, "synth", "-c", cfg, "-o", group, "--solve",
		"--rows", "2", "--cols", "2", "--width", "200", "--height", "160",
		"--features", "800", "--spacing", "4", "--position-error", "0")
	require.NoError(t, err)
	require.FileExists(t, group)
	require.FileExists(t, dataset.DefaultResultPath(group))

	meshPath := filepath.Join(dir, "mesh.json")
	_, err = run(t, "mesh", group, "-c", cfg, "-o", meshPath)
	require.NoError(t, err)
	m, err := dataset.LoadMesh(meshPath)
	require.NoError(t, err)
	assert.Equal(t, 200.0, m.Width)

	result := filepath.Join(dir, "r.json")
	_, err = run(t, "solve", group, "-c", cfg, "--mesh", meshPath, "-o", result)
	require.NoError(t, err)
	res, err := dataset.LoadResult(result)
	require.NoError(t, err)
	assert.Equal(t, m.VertexCount(), res.Result.Mesh.VertexCount())
	require.NotNil(t, res.Result.Transforms.Polynomial)
	assert.Len(t, res.Result.Transforms.Tiles, 4)
}

func TestSolveErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "solve", filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("nvertx = 3\n"), 0o644))
	_, err = run(t, "mesh", "-c", bad, "--points", "10")
	assert.Error(t, err)

	_, err = run(t, "solve")
	assert.Error(t, err)
}
