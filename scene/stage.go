package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"
	"sync/atomic"

	"customizer/core"
	"customizer/geometry"
	"customizer/imageio"

	"golang.org/x/sync/errgroup"
)

// ErrStageBusy is returned while another operation holds the stage.
var ErrStageBusy = errors.New("stage is busy")

// Node is one drawable on a layer. Its placement lives on the drawable.
type Node struct {
	ID       string
	Visible  bool
	Opacity  float64
	Base     bool
	Drawable *Element
}

// Layer groups the base image and elements of one product view.
type Layer struct {
	ID       string
	ViewID   string
	Visible  bool
	Opacity  float64
	Scale    float64
	Rotation float64
	Position geometry.Point
	Nodes    []*Node
}

func (l *Layer) transform() geometry.Affine {
	return geometry.Translation(l.Position.X, l.Position.Y).
		Mul(geometry.Rotation(l.Rotation)).
		Mul(geometry.Scale(l.Scale, l.Scale))
}

// Stage is the root surface holding one layer per product view.
type Stage struct {
	Width    float64
	Height   float64
	Scale    float64
	Rotation float64
	Position geometry.Point
	Layers   []*Layer

	loader imageio.Loader
	mu     sync.Mutex
	busy   atomic.Bool
}

// LayerID names the layer of a view.
func LayerID(viewID string) string {
	return "layer-" + viewID
}

// BaseNodeID names the base image node of a view.
func BaseNodeID(viewID string) string {
	return "base-" + viewID
}

// NewStage lays out one layer per view: the view image stretched over the
// stage, then the view's elements in paint order. Every layer starts visible.
func NewStage(width, height float64, views []core.ProductView, model *Model, loader imageio.Loader) *Stage {
	s := &Stage{Width: width, Height: height, Scale: 1, loader: loader}
	for _, v := range views {
		layer := &Layer{ID: LayerID(v.ID), ViewID: v.ID, Visible: true, Opacity: 1, Scale: 1}
		if v.ImageURL != "" {
			base := &Element{
				ID:     BaseNodeID(v.ID),
				Kind:   KindImage,
				ViewID: v.ID,
				X:      width / 2,
				Y:      height / 2,
				Scale:  1,
				Image:  &ImageData{Src: v.ImageURL, Width: width, Height: height, Name: v.Name},
			}
			layer.Nodes = append(layer.Nodes, &Node{ID: base.ID, Visible: true, Opacity: 1, Base: true, Drawable: base})
		}
		for _, el := range model.ForView(v.ID) {
			layer.Nodes = append(layer.Nodes, &Node{ID: el.ID, Visible: true, Opacity: 1, Drawable: el})
		}
		s.Layers = append(s.Layers, layer)
	}
	return s
}

// Layer returns the layer of a view.
func (s *Stage) Layer(viewID string) (*Layer, bool) {
	for _, l := range s.Layers {
		if l.ViewID == viewID {
			return l, true
		}
	}
	return nil, false
}

// Busy reports whether an exclusive operation holds the stage.
func (s *Stage) Busy() bool {
	return s.busy.Load()
}

// Exclusive runs fn with sole access to the stage. A second caller gets
// ErrStageBusy instead of waiting. The stage state is restored on every
// exit path, including panics.
func (s *Stage) Exclusive(fn func() error) error {
	if !s.mu.TryLock() {
		return ErrStageBusy
	}
	s.busy.Store(true)
	defer func() {
		s.busy.Store(false)
		s.mu.Unlock()
	}()
	return s.Preserve(fn)
}

// Preserve snapshots the stage, runs fn and restores the snapshot.
func (s *Stage) Preserve(fn func() error) error {
	state := s.Snapshot()
	defer s.Restore(state)
	return fn()
}

// ShowOnly makes the view's layer and all its nodes visible and hides every
// other layer.
func (s *Stage) ShowOnly(viewID string) error {
	target, ok := s.Layer(viewID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, viewID)
	}
	for _, l := range s.Layers {
		l.Visible = l == target
	}
	for _, n := range target.Nodes {
		n.Visible = true
	}
	return nil
}

// visibleImages lists image-backed drawables on visible layers and nodes.
func (s *Stage) visibleImages() []*ImageData {
	var out []*ImageData
	for _, l := range s.Layers {
		if !l.Visible {
			continue
		}
		for _, n := range l.Nodes {
			if n.Visible && n.Drawable.Kind == KindImage {
				out = append(out, n.Drawable.Image)
			}
		}
	}
	return out
}

// WaitForImages loads every visible image node and returns once all have
// pixel data. Loads run concurrently; the first failure is returned.
func (s *Stage) WaitForImages(ctx context.Context) error {
	if s.loader == nil {
		return errors.New("stage has no image loader")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, img := range s.visibleImages() {
		g.Go(func() error {
			if err := img.Load(ctx, s.loader); err != nil {
				return fmt.Errorf("failed to load %q: %w", img.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Stage) transform() geometry.Affine {
	return geometry.Translation(s.Position.X, s.Position.Y).
		Mul(geometry.Rotation(s.Rotation)).
		Mul(geometry.Scale(s.Scale, s.Scale))
}

// Rasterize flattens visible layers at pixelRatio output pixels per stage
// pixel. Within a layer the base image is drawn first, then elements by
// ascending zIndex.
func (s *Stage) Rasterize(pixelRatio float64) (*image.RGBA, error) {
	if pixelRatio <= 0 {
		pixelRatio = 1
	}
	w := int(s.Width*pixelRatio + 0.5)
	h := int(s.Height*pixelRatio + 0.5)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("stage has no area: %vx%v", s.Width, s.Height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	root := geometry.Scale(pixelRatio, pixelRatio).Mul(s.transform())

	for _, l := range s.Layers {
		if !l.Visible || l.Opacity <= 0 {
			continue
		}
		parent := root.Mul(l.transform())
		for _, n := range paintOrder(l.Nodes) {
			if !n.Visible {
				continue
			}
			if err := n.Drawable.Draw(dst, parent, l.Opacity*n.Opacity); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

func paintOrder(nodes []*Node) []*Node {
	out := make([]*Node, len(nodes))
	copy(out, nodes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base
		}
		a, b := out[i].Drawable, out[j].Drawable
		if a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		return a.seq < b.seq
	})
	return out
}
