package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) *CatalogRepo {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewCatalogRepo(&cfg.DataCfg{DataDir: dir, CSVPath: path})
}

func TestCatalogRepo_Load(t *testing.T) {
	repo := writeCSV(t, "id,image_url,name,price\n"+
		"p1,https://cdn/a.jpg,Alpha,19.99\n"+
		"p2,https://cdn/b.jpg,Beta,5\n")

	products, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, "https://cdn/a.jpg", products[0].ImageURL)
	assert.Equal(t, "Alpha", products[0].Name)
	assert.Equal(t, "19.99", products[0].Price)
	assert.True(t, repo.Exists())
}

func TestCatalogRepo_ShortRowsPadded(t *testing.T) {
	// Строка с меньшим числом полей дополняется пустыми значениями.
	repo := writeCSV(t, "id,image_url,name\n"+
		"p1,a.jpg\n"+
		"p2,b.jpg,Beta\n")

	products, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "", products[0].Name)
	assert.Equal(t, "Beta", products[1].Name)
}

func TestCatalogRepo_MissingFile(t *testing.T) {
	repo := NewCatalogRepo(&cfg.DataCfg{CSVPath: filepath.Join(t.TempDir(), "absent.csv")})

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, e.ErrCSVNotFound)
	assert.False(t, repo.Exists())
}

func TestCatalogRepo_EmptyFile(t *testing.T) {
	repo := writeCSV(t, "")

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, e.ErrSchema)
}

func TestCatalogRepo_NoImageColumn(t *testing.T) {
	repo := writeCSV(t, "id,name\np1,Alpha\n")

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, e.ErrSchema)
}
