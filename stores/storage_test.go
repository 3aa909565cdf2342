package stores

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"customizer/geometry"
	"customizer/stores/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
products:
  classic-tee:
    - id: front
      name: Front
      imageUrl: https://cdn.example.com/tee-front.png
      price: 5
      embroideryAdditionalFee: 8
      printAdditionalFee: 3
      boundaryBoxes:
        - id: chest
          name: Chest
          x: 25
          y: 20
          width: 50
          height: 40
    - id: back
      name: Back
      imageUrl: https://cdn.example.com/tee-back.png
      price: 4
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndSeedCatalog(t *testing.T) {
	c, err := LoadCatalog(writeFile(t, catalogYAML))
	require.NoError(t, err)

	views := c.Products["classic-tee"]
	require.Len(t, views, 2)
	require.NotNil(t, views[0].EmbroideryAdditionalFee)
	assert.Equal(t, 8.0, *views[0].EmbroideryAdditionalFee)
	assert.Nil(t, views[1].PrintAdditionalFee)
	assert.Equal(t, 50.0, views[0].BoundaryBoxes[0].Width)

	store := memory.NewStore()
	require.NoError(t, Seed(context.Background(), store, c))
	got, err := store.GetViews(context.Background(), "classic-tee")
	require.NoError(t, err)
	assert.Equal(t, views, got)
}

func TestLoadCatalogRejectsOverflowingBox(t *testing.T) {
	bad := `
products:
  mug:
    - id: wrap
      name: Wrap
      boundaryBoxes:
        - {id: b, x: 60, y: 0, width: 50, height: 10}
`
	_, err := LoadCatalog(writeFile(t, bad))
	assert.ErrorIs(t, err, geometry.ErrInvalidBox)
}

func TestLoadCatalogRejectsProductWithoutViews(t *testing.T) {
	bad := `
products:
  tote: []
`
	_, err := LoadCatalog(writeFile(t, bad))
	assert.ErrorIs(t, err, geometry.ErrNoViews)
	assert.Contains(t, err.Error(), "product tote")
}
