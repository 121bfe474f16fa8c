package catalog

import (
	"context"
	"encoding/csv"
	"os"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/internal/domain"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/jimlawless/whereami"
)

// CatalogRepo реализует репозиторий каталога поверх CSV-файла.
type CatalogRepo struct {
	cfg *cfg.DataCfg
}

func NewCatalogRepo(cfg *cfg.DataCfg) *CatalogRepo {
	return &CatalogRepo{
		cfg: cfg,
	}
}

// Load читает CSV и возвращает нормализованные записи каталога.
func (c *CatalogRepo) Load(_ context.Context) ([]domain.Product, error) {
	f, err := os.Open(c.cfg.CSVPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, e.Wrap(c.cfg.CSVPath, e.ErrCSVNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // строки с неполным числом полей дополняются пустыми значениями

	records, err := reader.ReadAll()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	if len(records) == 0 {
		return nil, e.Wrap(c.cfg.CSVPath, e.ErrSchema)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return Normalize(headers, rows)
}

// Exists сообщает, существует ли CSV каталога.
func (c *CatalogRepo) Exists() bool {
	_, err := os.Stat(c.cfg.CSVPath)
	return err == nil
}
