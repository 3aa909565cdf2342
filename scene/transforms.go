package scene

import (
	"fmt"

	"customizer/core"
	"customizer/imageio"
)

// ImageTransforms converts elements into compositor overlays. Images pass
// their source through; text and shapes are rasterized to PNG data URIs at
// their on-stage size. The overlay geometry is the element's footprint
// centered on its position.
func ImageTransforms(els []*Element) ([]core.ImageTransform, error) {
	out := make([]core.ImageTransform, 0, len(els))
	for _, el := range els {
		fw, fh := el.Footprint()
		if fw <= 0 || fh <= 0 {
			continue
		}
		src, err := overlaySource(el)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", el.ID, err)
		}
		out = append(out, core.ImageTransform{
			ImageDataURI: src,
			X:            el.X,
			Y:            el.Y,
			Width:        fw,
			Height:       fh,
			Rotation:     el.Rotation,
			ZIndex:       el.ZIndex,
		})
	}
	return out, nil
}

func overlaySource(el *Element) (string, error) {
	if el.Kind == KindImage {
		return el.Image.Src, nil
	}
	img, err := el.source(el.Scale)
	if err != nil {
		return "", err
	}
	return imageio.PNGDataURI(img)
}
