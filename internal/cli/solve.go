package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"meshlens/internal/dataset"
	"meshlens/internal/lens"
	"meshlens/pkg/lenserr"
)

type solveFlags struct {
	output   string
	meshPath string
	nvertex  int
	strict   bool
}

func newSolveCmd(g *globals) *cobra.Command {
	f := &solveFlags{}
	cmd := &cobra.Command{
		Use:   "solve <group.json>",
		Short: "Solve the lens transform of a group",
		Long: `Solve reads a group file, builds (or reuses) the lens mesh, solves the
regularized system and writes the tile affines and lens transform as JSON.

The result is checked against the [good_solve] thresholds. A poor solve is
logged and recorded in the result file; with --strict it also fails the command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, g, f, args[0])
		},
	}
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "result file (default <group>_result.json)")
	cmd.Flags().StringVar(&f.meshPath, "mesh", "", "reuse a mesh file instead of building one")
	cmd.Flags().IntVar(&f.nvertex, "nvertex", 0, "override the target vertex count")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "fail when the solve does not pass the quality thresholds")
	return cmd
}

func runSolve(cmd *cobra.Command, g *globals, f *solveFlags, path string) error {
	logger := loggerFromContext(cmd.Context())

	cfg, err := g.options()
	if err != nil {
		return err
	}
	opts := cfg.Options().WithLogger(logger)
	if f.nvertex > 0 {
		opts = opts.WithNVertex(f.nvertex)
	}

	file, err := dataset.Load(path)
	if err != nil {
		return err
	}

	meshPath := f.meshPath
	if meshPath == "" {
		meshPath = file.GetMeshPath(path)
	}
	if meshPath != "" {
		m, err := dataset.LoadMesh(meshPath)
		if err != nil {
			return err
		}
		logger.Info("reusing mesh", "path", meshPath, "vertices", m.VertexCount())
		opts = opts.WithMesh(m)
	}

	prog := newProgress(logger)
	ctx, err := lens.NewContext(file.Group, opts)
	if err != nil {
		return errors.Wrapf(err, "group %s", file.Name)
	}
	res, err := lens.Solve(ctx)
	if err != nil {
		if lenserr.IsRetryable(err) {
			logger.Warn("system is underconstrained, try a smaller --nvertex or stronger regularization")
		}
		return errors.Wrapf(err, "solve %s", file.Name)
	}
	prog.done("solved", "group", file.Name, "tiles", len(file.Group.Tiles))

	for _, w := range res.Warnings {
		logger.Warn(w.Message, "code", w.Code)
	}
	quality := res.Diagnostics.Check(opts.GoodSolve)
	if quality != nil {
		logger.Warn("poor solve", "err", quality)
	}

	out := f.output
	if out == "" {
		out = dataset.DefaultResultPath(path)
	}
	if err := dataset.SaveResult(out, file.Name, res, quality); err != nil {
		return err
	}
	logger.Info("wrote result", "path", out,
		"error_mean", res.Diagnostics.ErrorMean,
		"error_std", res.Diagnostics.ErrorStd,
		"scale_dev", res.Diagnostics.ScaleDev)

	if f.strict && quality != nil {
		return quality
	}
	return nil
}
