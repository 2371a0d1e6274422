// Package pointpattern builds planar point patterns, the basic object of
// the point-process statistics in the summary package.
package pointpattern

import (
	"math"

	"github.com/chrissnell/landfall/internal/types"
)

// Window is an axis-aligned bounding rectangle.
type Window struct {
	XMin, XMax float64
	YMin, YMax float64
}

// Width returns the horizontal extent.
func (w Window) Width() float64 { return w.XMax - w.XMin }

// Height returns the vertical extent.
func (w Window) Height() float64 { return w.YMax - w.YMin }

// Area returns the window area.
func (w Window) Area() float64 { return w.Width() * w.Height() }

// Contains reports whether p lies inside the window, boundary inclusive.
func (w Window) Contains(p types.XY) bool {
	return p.X >= w.XMin && p.X <= w.XMax && p.Y >= w.YMin && p.Y <= w.YMax
}

// PointPattern is an immutable set of locations within a Window.
// Transformations produce new patterns; the contained slice must not be
// mutated by callers.
type PointPattern struct {
	win    Window
	points []types.XY
	crs    types.CRS
}

// New builds a pattern whose window is the tight bounding box of points.
// Callers must remove NaN coordinates beforehand.
func New(points []types.XY, crs types.CRS) (*PointPattern, error) {
	if len(points) < 1 {
		return nil, &types.InvalidGeometryError{Reason: "no points", NPts: len(points)}
	}
	win := Window{XMin: math.Inf(1), XMax: math.Inf(-1), YMin: math.Inf(1), YMax: math.Inf(-1)}
	for _, p := range points {
		win.XMin = math.Min(win.XMin, p.X)
		win.XMax = math.Max(win.XMax, p.X)
		win.YMin = math.Min(win.YMin, p.Y)
		win.YMax = math.Max(win.YMax, p.Y)
	}
	return NewInWindow(points, win, crs)
}

// NewInWindow builds a pattern with an explicit window. Points outside
// the window are an error, not silently dropped, so a caller-supplied
// window cannot quietly shrink the data.
func NewInWindow(points []types.XY, win Window, crs types.CRS) (*PointPattern, error) {
	if len(points) < 1 {
		return nil, &types.InvalidGeometryError{Reason: "no points", NPts: len(points)}
	}
	if !(win.XMax > win.XMin) || !(win.YMax > win.YMin) {
		return nil, &types.InvalidGeometryError{
			Reason: "window has zero area",
			XMin:   win.XMin, XMax: win.XMax, YMin: win.YMin, YMax: win.YMax,
			NPts: len(points),
		}
	}
	for _, p := range points {
		if !win.Contains(p) {
			return nil, &types.InvalidGeometryError{
				Reason: "point outside window",
				XMin:   win.XMin, XMax: win.XMax, YMin: win.YMin, YMax: win.YMax,
				NPts: len(points),
			}
		}
	}
	cp := make([]types.XY, len(points))
	copy(cp, points)
	return &PointPattern{win: win, points: cp, crs: crs}, nil
}

// Window returns the pattern's window.
func (p *PointPattern) Window() Window { return p.win }

// CRS returns the coordinate reference system tag.
func (p *PointPattern) CRS() types.CRS { return p.crs }

// N returns the number of points.
func (p *PointPattern) N() int { return len(p.points) }

// Points returns the contained locations. The returned slice is shared;
// callers must treat it as read-only.
func (p *PointPattern) Points() []types.XY { return p.points }

// Intensity returns the overall density n / area.
func (p *PointPattern) Intensity() float64 { return float64(len(p.points)) / p.win.Area() }

// Filter returns a new pattern over the points satisfying keep, with a
// freshly computed tight window.
func (p *PointPattern) Filter(keep func(i int, pt types.XY) bool) (*PointPattern, error) {
	var sub []types.XY
	for i, pt := range p.points {
		if keep(i, pt) {
			sub = append(sub, pt)
		}
	}
	return New(sub, p.crs)
}
