package imageio

import (
	"image"
	"image/color"

	"customizer/geometry"

	xdraw "golang.org/x/image/draw"
)

// DrawAffine composites src over dst through m, which maps src pixel space
// to dst pixel space. opacity in [0, 1] scales the source alpha.
func DrawAffine(dst xdraw.Image, src image.Image, m geometry.Affine, opacity float64) {
	if opacity <= 0 {
		return
	}
	if opacity < 1 {
		src = fade(src, opacity)
	}
	xdraw.BiLinear.Transform(dst, m.Aff3(), src, src.Bounds(), xdraw.Over, nil)
}

// ScaleInto draws src stretched over the whole of dst.
func ScaleInto(dst xdraw.Image, src image.Image) {
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
}

func fade(src image.Image, opacity float64) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := src.At(x, y).RGBA()
			out.SetRGBA64(x, y, color.RGBA64{
				R: uint16(float64(r) * opacity),
				G: uint16(float64(g) * opacity),
				B: uint16(float64(bl) * opacity),
				A: uint16(float64(a) * opacity),
			})
		}
	}
	return out
}
