// Package lens runs the lens-correction solve for one group of tiles: it evens
// the matched points, builds the mesh, assembles and solves the regularized
// system and exports tile affines plus a shared lens transform.
//
// The pipeline is a chain of stage functions over an immutable SolveContext:
//
//	ctx, err := lens.NewContext(group, lens.DefaultOptions())
//	res, err := lens.Solve(ctx)
//	if err := res.Diagnostics.Check(opts.GoodSolve); err != nil {
//	    // caller decides what a poor solve means
//	}
package lens

import (
	"github.com/charmbracelet/log"

	"meshlens/internal/match"
)

// SolveContext is the validated input of one solve. It is never modified by
// the stages, so one context may be solved more than once.
type SolveContext struct {
	tiles   []match.Tile
	matches []match.PointMatch
	index   match.TileIndex
	width   float64
	height  float64
	opts    Options
	logger  *log.Logger
}

// NewContext validates the group and options.
func NewContext(group match.Group, opts Options) (*SolveContext, error) {
	index, width, height, err := group.Validate()
	if err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Mesh != nil && (opts.Mesh.Width != width || opts.Mesh.Height != height) {
		return nil, invalidMesh(opts.Mesh.Width, opts.Mesh.Height, width, height)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &SolveContext{
		tiles:   append([]match.Tile(nil), group.Tiles...),
		matches: append([]match.PointMatch(nil), group.Matches...),
		index:   index,
		width:   width,
		height:  height,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Tiles returns the ordered tiles.
func (c *SolveContext) Tiles() []match.Tile { return c.tiles }

// TileSize returns the shared tile width and height.
func (c *SolveContext) TileSize() (float64, float64) { return c.width, c.height }

// Options returns the solve options.
func (c *SolveContext) Options() Options { return c.opts }

// Logger returns the context logger.
func (c *SolveContext) Logger() *log.Logger { return c.logger }
