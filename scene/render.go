package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	fontsMu sync.Mutex
	fonts   = map[string]*opentype.Font{}
)

// fontFor maps a CSS-ish family name to one of the bundled Go fonts.
func fontFor(family string) (*opentype.Font, error) {
	f := strings.ToLower(family)
	var key string
	var ttf []byte
	switch {
	case strings.Contains(f, "mono"), strings.Contains(f, "courier"):
		key, ttf = "mono", gomono.TTF
	case strings.Contains(f, "bold"), strings.Contains(f, "impact"):
		key, ttf = "bold", gobold.TTF
	case strings.Contains(f, "italic"), strings.Contains(f, "script"):
		key, ttf = "italic", goitalic.TTF
	default:
		key, ttf = "regular", goregular.TTF
	}

	fontsMu.Lock()
	defer fontsMu.Unlock()
	if fnt, ok := fonts[key]; ok {
		return fnt, nil
	}
	fnt, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", key, err)
	}
	fonts[key] = fnt
	return fnt, nil
}

// newFace returns a fresh face; faces are not safe for concurrent use.
func newFace(t *TextData, density float64) (font.Face, error) {
	fnt, err := fontFor(t.FontFamily)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    t.FontSize * density,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func measureFace(face font.Face, content string) (w, h fixed.Int26_6, lines []string) {
	lines = strings.Split(content, "\n")
	for _, l := range lines {
		w = max(w, font.MeasureString(face, l))
	}
	h = face.Metrics().Height * fixed.Int26_6(len(lines))
	return w, h, lines
}

// measureText returns the text box in intrinsic pixels at density.
func measureText(t *TextData, density float64) (float64, float64, error) {
	face, err := newFace(t, density)
	if err != nil {
		return 0, 0, err
	}
	defer face.Close()
	w, h, _ := measureFace(face, t.Content)
	return float64(w.Ceil()) / density, float64(h.Ceil()) / density, nil
}

func renderText(t *TextData, density float64) (*image.RGBA, error) {
	face, err := newFace(t, density)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	c, err := ParseColor(t.Color)
	if err != nil {
		return nil, err
	}

	w, h, lines := measureFace(face, t.Content)
	img := image.NewRGBA(image.Rect(0, 0, max(1, w.Ceil()), max(1, h.Ceil())))
	m := face.Metrics()
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	for i, l := range lines {
		d.Dot = fixed.Point26_6{X: 0, Y: m.Ascent + m.Height*fixed.Int26_6(i)}
		d.DrawString(l)
	}
	return img, nil
}

func renderShape(s *ShapeData, density float64) (*image.RGBA, error) {
	w := max(1, int(math.Ceil(s.Width*density)))
	h := max(1, int(math.Ceil(s.Height*density)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	fill, err := ParseColor(s.Color)
	if err != nil {
		return nil, err
	}

	// Strokes are kept inside the footprint.
	sw := s.StrokeWidth * density
	inset := sw / 2
	fw, fh := float64(w), float64(h)

	addPath := func(p rasterx.Adder) {
		switch s.ShapeType {
		case ShapeCircle:
			rasterx.AddEllipse(fw/2, fh/2, fw/2-inset, fh/2-inset, 0, p)
		default:
			rasterx.AddRect(inset, inset, fw-inset, fh-inset, 0, p)
		}
	}

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	filler := rasterx.NewFiller(w, h, scanner)
	filler.SetColor(fill)
	addPath(filler)
	filler.Draw()

	if sw > 0 && s.StrokeColor != "" {
		stroke, err := ParseColor(s.StrokeColor)
		if err != nil {
			return nil, err
		}
		stroker := rasterx.NewStroker(w, h, scanner)
		stroker.SetStroke(fixed.Int26_6(sw*64), fixed.Int26_6(4*64), rasterx.ButtCap, rasterx.ButtCap, rasterx.FlatGap, rasterx.Miter)
		stroker.SetColor(stroke)
		addPath(stroker)
		stroker.Draw()
	}
	return img, nil
}

var namedColors = map[string]color.RGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"yellow":      {255, 255, 0, 255},
	"orange":      {255, 165, 0, 255},
	"purple":      {128, 0, 128, 255},
	"gray":        {128, 128, 128, 255},
	"grey":        {128, 128, 128, 255},
	"transparent": {0, 0, 0, 0},
}

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa and a few CSS names.
// An empty string is black.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return color.RGBA{A: 255}, nil
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("unsupported color %q", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("unsupported color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unsupported color %q: %w", s, err)
	}
	// Premultiply for color.RGBA.
	a := uint32(v & 0xff)
	pm := func(c uint32) uint8 { return uint8(c * a / 0xff) }
	return color.RGBA{
		R: pm(uint32(v >> 24 & 0xff)),
		G: pm(uint32(v >> 16 & 0xff)),
		B: pm(uint32(v >> 8 & 0xff)),
		A: uint8(a),
	}, nil
}
