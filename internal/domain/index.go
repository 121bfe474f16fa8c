package domain

// Index хранит матрицу эмбеддингов и параллельный список идентификаторов.
// Инвариант: IDs[i] соответствует строке Vectors[i]; нарушать это соответствие нельзя.
type Index struct {
	Vectors [][]float32
	IDs     []string
	Dim     int
}

func NewIndex(vectors [][]float32, ids []string) *Index {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	return &Index{
		Vectors: vectors,
		IDs:     ids,
		Dim:     dim,
	}
}

// Len возвращает число проиндексированных векторов.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.IDs)
}

// Snapshot — опубликованное представление индекса: матрица, идентификаторы и
// таблица продуктов, с которой индекс был собран. Снимок неизменяем;
// пересборка публикует новый снимок целиком, никогда не меняя старый.
type Snapshot struct {
	Index    *Index
	Products []Product
	byID     map[string]int // индекс первого вхождения id в Products
}

func NewSnapshot(index *Index, products []Product) *Snapshot {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		if _, ok := byID[p.ID]; !ok {
			byID[p.ID] = i
		}
	}

	return &Snapshot{
		Index:    index,
		Products: products,
		byID:     byID,
	}
}

// EmptySnapshot возвращает пустой снимок для старта процесса.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil, nil)
}

// Product возвращает продукт по идентификатору (первое вхождение в таблице).
func (s *Snapshot) Product(id string) (Product, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Product{}, false
	}
	return s.Products[i], true
}

// Ready сообщает, можно ли отвечать на поисковые запросы по этому снимку.
func (s *Snapshot) Ready() bool {
	return s != nil && s.Index.Len() > 0 && s.Products != nil
}
