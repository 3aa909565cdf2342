package scene

import (
	"image"
	"image/color"
	"testing"

	"customizer/core"
	"customizer/imageio"

	"github.com/stretchr/testify/require"
)

const (
	stageW = 600.0
	stageH = 800.0
)

func solidURI(t *testing.T, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	uri, err := imageio.PNGDataURI(img)
	require.NoError(t, err)
	return uri
}

func testViews(t *testing.T) []core.ProductView {
	embroidery := 8.0
	return []core.ProductView{
		{
			ID:                      "front",
			Name:                    "Front",
			ImageURL:                solidURI(t, color.RGBA{255, 255, 255, 255}),
			BoundaryBoxes:           []core.BoundaryBox{{ID: "chest", Name: "Chest", X: 25, Y: 20, Width: 50, Height: 40}},
			Price:                   5,
			EmbroideryAdditionalFee: &embroidery,
		},
		{
			ID:       "back",
			Name:     "Back",
			ImageURL: solidURI(t, color.RGBA{0, 255, 0, 255}),
			Price:    3,
		},
	}
}

func addImage(t *testing.T, m *Model, view string, x, y float64, z int) string {
	t.Helper()
	id, err := m.Add(KindImage, Element{
		ViewID: view,
		X:      x,
		Y:      y,
		ZIndex: z,
		Image:  &ImageData{Src: solidURI(t, color.RGBA{255, 0, 0, 255}), Width: 200, Height: 100},
	})
	require.NoError(t, err)
	return id
}

func addRect(t *testing.T, m *Model, view string, x, y float64, c string) string {
	t.Helper()
	id, err := m.Add(KindShape, Element{
		ViewID: view,
		X:      x,
		Y:      y,
		Shape:  &ShapeData{ShapeType: ShapeRectangle, Width: 100, Height: 100, Color: c},
	})
	require.NoError(t, err)
	return id
}
