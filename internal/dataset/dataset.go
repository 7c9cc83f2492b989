// Package dataset provides file handling for lens groups, meshes and results.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"meshlens/internal/lens"
	"meshlens/internal/match"
	"meshlens/internal/mesh"
)

// FormatVersion is written to every file and checked on load.
const FormatVersion = 1

// File is a lens group on disk (.lens.json).
type File struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Description string    `json:"description,omitempty"`

	// MeshPath points at a prebuilt mesh to reuse (relative to the file).
	MeshPath string `json:"mesh,omitempty"`

	Group match.Group `json:"group"`
}

// New creates a group file.
func New(name string, group match.Group) *File {
	now := time.Now()
	return &File{
		Version:  FormatVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		Group:    group,
	}
}

// Load loads a group file.
func Load(path string) (*File, error) {
	var f File
	if err := readJSON(path, &f); err != nil {
		return nil, err
	}
	if f.Version > FormatVersion {
		return nil, errors.Errorf("%s: format version %d is newer than %d", path, f.Version, FormatVersion)
	}
	return &f, nil
}

// Save saves the group file.
func (f *File) Save(path string) error {
	f.Modified = time.Now()
	if f.Version == 0 {
		f.Version = FormatVersion
	}
	return writeJSON(path, f)
}

// SetMesh records the mesh path relative to the group file.
func (f *File) SetMesh(filePath, meshPath string) {
	rel, err := filepath.Rel(filepath.Dir(filePath), meshPath)
	if err != nil {
		f.MeshPath = meshPath
	} else {
		f.MeshPath = rel
	}
	f.Modified = time.Now()
}

// GetMeshPath returns the absolute path to the mesh file, or "" when none is set.
func (f *File) GetMeshPath(filePath string) string {
	if f.MeshPath == "" {
		return ""
	}
	if filepath.IsAbs(f.MeshPath) {
		return f.MeshPath
	}
	return filepath.Join(filepath.Dir(filePath), f.MeshPath)
}

// DefaultResultPath derives the result file name from the group file name.
func DefaultResultPath(filePath string) string {
	base := filePath[:len(filePath)-len(filepath.Ext(filePath))]
	return base + "_result.json"
}

// LoadMesh loads a mesh written by SaveMesh.
func LoadMesh(path string) (*mesh.Mesh, error) {
	var m mesh.Mesh
	if err := readJSON(path, &m); err != nil {
		return nil, err
	}
	if len(m.Triangles) == 0 {
		return nil, errors.Errorf("%s: mesh has no triangles", path)
	}
	for i, tri := range m.Triangles {
		for _, v := range tri {
			if v < 0 || v >= len(m.Vertices) {
				return nil, errors.Errorf("%s: triangle %d references vertex %d of %d", path, i, v, len(m.Vertices))
			}
		}
	}
	return &m, nil
}

// SaveMesh writes a mesh for reuse across groups.
func SaveMesh(path string, m *mesh.Mesh) error {
	return writeJSON(path, m)
}

// ResultFile is a solve result on disk.
type ResultFile struct {
	Version int          `json:"version"`
	Group   string       `json:"group"`
	Solved  time.Time    `json:"solved"`
	Quality string       `json:"quality"`
	Result  *lens.Result `json:"result"`
}

// SaveResult writes a solve result with its quality verdict.
func SaveResult(path, group string, res *lens.Result, quality error) error {
	verdict := "ok"
	if quality != nil {
		verdict = quality.Error()
	}
	return writeJSON(path, &ResultFile{
		Version: FormatVersion,
		Group:   group,
		Solved:  time.Now(),
		Quality: verdict,
		Result:  res,
	})
}

// LoadResult reads a result file.
func LoadResult(path string) (*ResultFile, error) {
	var r ResultFile
	if err := readJSON(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "write")
}
