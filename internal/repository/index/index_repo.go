package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/internal/domain"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/jimlawless/whereami"
)

// Формат файла матрицы: два uint32 little-endian (rows, dim),
// затем rows*dim float32 little-endian построчно.

// IndexRepo хранит пару артефактов индекса: матрицу эмбеддингов и список идентификаторов.
// Артефакты всегда записываются и читаются вместе; расхождение размеров — ErrCorruptIndex.
type IndexRepo struct {
	cfg *cfg.DataCfg
}

func NewIndexRepo(cfg *cfg.DataCfg) *IndexRepo {
	return &IndexRepo{
		cfg: cfg,
	}
}

// Save атомарно записывает оба артефакта (запись во временный файл + rename).
func (r *IndexRepo) Save(_ context.Context, index *domain.Index) error {
	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := writeMatrix(r.cfg.IndexPath, index); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := writeIDs(r.cfg.IDsPath, index.IDs); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Load читает пару артефактов и проверяет их согласованность.
func (r *IndexRepo) Load(_ context.Context) (*domain.Index, error) {
	vectors, err := readMatrix(r.cfg.IndexPath)
	if err != nil {
		return nil, err
	}

	ids, err := readIDs(r.cfg.IDsPath)
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(ids) {
		return nil, e.Wrap(
			fmt.Sprintf("matrix rows=%d ids=%d", len(vectors), len(ids)),
			e.ErrCorruptIndex,
		)
	}

	return domain.NewIndex(vectors, ids), nil
}

func (r *IndexRepo) MatrixExists() bool {
	_, err := os.Stat(r.cfg.IndexPath)
	return err == nil
}

func (r *IndexRepo) IDsExist() bool {
	_, err := os.Stat(r.cfg.IDsPath)
	return err == nil
}

func writeMatrix(path string, index *domain.Index) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".embeddings-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)

	header := [2]uint32{uint32(index.Len()), uint32(index.Dim)}
	if err := binary.Write(w, binary.LittleEndian, header[:]); err != nil {
		tmp.Close()
		return err
	}
	for _, vec := range index.Vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			tmp.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func readMatrix(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	r := bufio.NewReader(f)

	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, header[:]); err != nil {
		return nil, e.Wrap("matrix header", e.ErrCorruptIndex)
	}
	rows, dim := int(header[0]), int(header[1])

	// Заголовок проверяется по размеру файла до аллокаций: битый заголовок
	// не должен провоцировать выделение гигабайт под пустые строки.
	const headerSize = 8
	if want := headerSize + int64(rows)*int64(dim)*4; want != info.Size() {
		return nil, e.Wrap(
			fmt.Sprintf("matrix header rows=%d dim=%d does not match file size %d", rows, dim, info.Size()),
			e.ErrCorruptIndex,
		)
	}

	vectors := make([][]float32, rows)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, e.Wrap(fmt.Sprintf("matrix row %d", i), e.ErrCorruptIndex)
		}
		vectors[i] = vec
	}

	return vectors, nil
}

func writeIDs(path string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ids-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func readIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, e.Wrap("ids artifact", e.ErrCorruptIndex)
	}

	return ids, nil
}
