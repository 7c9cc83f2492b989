package cli

import (
	"math/rand"

	"github.com/spf13/cobra"

	"meshlens/internal/dataset"
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/pkg/geometry"
)

type meshFlags struct {
	output  string
	nvertex int
	width   float64
	height  float64
	points  int
	seed    int64
}

func newMeshCmd(g *globals) *cobra.Command {
	f := &meshFlags{}
	cmd := &cobra.Command{
		Use:   "mesh [group.json]",
		Short: "Build a lens mesh and save it for reuse",
		Long: `Mesh builds the triangulation a solve would use and writes it as JSON.

With a group file the evened matched points of the group drive the mesh, so
the mesh can be shared by other sections of the same acquisition with
"solve --mesh". Without one, a uniform random point cloud of --points points
over a --width x --height tile is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMesh(cmd, g, f, args)
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "mesh.json", "mesh file to write")
	cmd.Flags().IntVar(&f.nvertex, "nvertex", 0, "override the target vertex count")
	cmd.Flags().Float64Var(&f.width, "width", 1000, "tile width without a group file")
	cmd.Flags().Float64Var(&f.height, "height", 800, "tile height without a group file")
	cmd.Flags().IntVar(&f.points, "points", 5000, "random points without a group file")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "random seed without a group file")
	return cmd
}

func runMesh(cmd *cobra.Command, g *globals, f *meshFlags, args []string) error {
	logger := loggerFromContext(cmd.Context())

	cfg, err := g.options()
	if err != nil {
		return err
	}
	opts := cfg.Options()
	if f.nvertex > 0 {
		opts.NVertex = f.nvertex
	}

	width, height := f.width, f.height
	var points []geometry.Point2D
	if len(args) == 1 {
		file, err := dataset.Load(args[0])
		if err != nil {
			return err
		}
		_, width, height, err = file.Group.Validate()
		if err != nil {
			return err
		}
		var stats match.EvenStats
		points, stats = match.Even(file.Group.Points(), width, height, opts.Even)
		logger.Info("points evened", "input", stats.Input, "output", stats.Output, "empty_cells", stats.EmptyCells)
	} else {
		rng := rand.New(rand.NewSource(f.seed))
		points = make([]geometry.Point2D, f.points)
		for i := range points {
			points[i] = geometry.Point2D{X: rng.Float64() * width, Y: rng.Float64() * height}
		}
	}

	prog := newProgress(logger)
	m, warnings, err := mesh.Build(width, height, points, opts.MeshOptions(logger))
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn(w.Message, "code", w.Code)
	}
	prog.done("mesh built",
		"vertices", m.VertexCount(),
		"triangles", len(m.Triangles),
		"max_area", m.MaxArea,
		"min_support", m.MinSupport(),
		"hole", m.HasHole())

	if err := dataset.SaveMesh(f.output, m); err != nil {
		return err
	}
	logger.Info("wrote mesh", "path", f.output)
	return nil
}
