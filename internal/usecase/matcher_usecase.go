package usecase

import (
	"context"
	"image"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/visual-matcher/internal/domain"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MatcherUseCase реализует сборку индекса эмбеддингов и поиск похожих товаров.
//
// Текущее состояние индекса хранится как атомарно заменяемый снимок (domain.Snapshot):
// сборка готовит новый снимок в стороне и публикует его одним действием,
// поэтому конкурентные запросы видят либо полностью старый, либо полностью новый индекс.
type MatcherUseCase struct {
	catalogRepo CatalogRepository
	indexRepo   IndexRepository
	fetcher     FetcherInfra
	extractor   ExtractorInfra
	producer    EventProducerInfra // опционален
	logger      logger.Logger
	corsOrigins []string

	snapshot atomic.Pointer[domain.Snapshot]
	buildMu  sync.Mutex // одновременно выполняется не более одной сборки
}

func NewMatcherUC(
	catalogRepo CatalogRepository,
	indexRepo IndexRepository,
	fetcher FetcherInfra,
	extractor ExtractorInfra,
	producer EventProducerInfra,
	logger logger.Logger,
	corsOrigins []string,
) *MatcherUseCase {
	m := &MatcherUseCase{
		catalogRepo: catalogRepo,
		indexRepo:   indexRepo,
		fetcher:     fetcher,
		extractor:   extractor,
		producer:    producer,
		logger:      logger,
		corsOrigins: corsOrigins,
	}
	m.snapshot.Store(domain.EmptySnapshot())

	return m
}

// Bootstrap загружает каталог и индекс при старте процесса в режиме best-effort:
// ошибки логируются, сервис продолжает подниматься и сообщает состояние через Health.
func (m *MatcherUseCase) Bootstrap(ctx context.Context) {
	const op = "MatcherUseCase.Bootstrap"

	products, err := m.catalogRepo.Load(ctx)
	if err != nil {
		m.logger.Warnf("failed to load catalog: %v", e.Wrap(op, err))
	} else {
		m.logger.Infof("catalog loaded, rows=%d", len(products))
		m.snapshot.Store(domain.NewSnapshot(nil, products))
	}

	if m.indexRepo.MatrixExists() && m.indexRepo.IDsExist() {
		index, err := m.indexRepo.Load(ctx)
		if err != nil {
			m.logger.Warnf("failed to load existing index: %v", e.Wrap(op, err))
		} else {
			m.snapshot.Store(domain.NewSnapshot(index, products))
			m.logger.Infof("loaded index items=%d dim=%d", index.Len(), index.Dim)
			return
		}
	}

	if _, err := m.BuildIndex(ctx); err != nil {
		m.logger.Warnf("startup index build failed: %v", e.Wrap(op, err))
	}
}

// BuildIndex пересобирает индекс из каталога: источник каждой записи скачивается,
// векторизуется, нормализуется и добавляется в матрицу. Ошибка одной записи не
// прерывает сборку — запись логируется и пропускается. Пустой результат фатален.
// Повторный вызов во время работающей сборки отклоняется с ErrBuildInProgress.
func (m *MatcherUseCase) BuildIndex(ctx context.Context) (*BuildIndexRes, error) {
	const op = "MatcherUseCase.BuildIndex"

	if !m.buildMu.TryLock() {
		return nil, e.Wrap(op, e.ErrBuildInProgress)
	}
	defer m.buildMu.Unlock()

	products, err := m.catalogRepo.Load(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	m.logger.Infof("indexing %d rows from catalog", len(products))

	vectors := make([][]float32, 0, len(products))
	ids := make([]string, 0, len(products))
	skipped := 0

	for _, product := range products {
		outcome := m.processRecord(ctx, product)
		if outcome.Err != nil {
			skipped++
			m.logger.Warnf("build_index skipped id=%s stage=%s: %v", outcome.ID, outcome.Stage, outcome.Err)
			continue
		}

		vectors = append(vectors, outcome.Vector)
		ids = append(ids, outcome.ID)
	}

	if len(vectors) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyIndex)
	}

	index := domain.NewIndex(vectors, ids)
	if err := m.indexRepo.Save(ctx, index); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Публикация нового снимка одним действием
	m.snapshot.Store(domain.NewSnapshot(index, products))
	m.logger.Infof("built index size=%d skipped=%d", len(ids), skipped)

	m.publishRebuilt(ctx, len(ids), skipped, index.Dim)

	return NewBuildIndexRes(len(ids), skipped), nil
}

// Search отвечает на запрос похожих товаров по изображению.
func (m *MatcherUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "MatcherUseCase.Search"

	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		return nil, e.Wrap(op, e.ErrMinSimilarityRange)
	}
	if req.TopK <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidTopK)
	}

	snap := m.snapshot.Load()
	if !snap.Ready() {
		return nil, e.Wrap(op, e.ErrIndexNotReady)
	}

	img, meta, err := m.loadQueryImage(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vec, err := m.extractor.Vectorize(ctx, img)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	query := domain.Normalize(vec)

	items := m.rank(snap, query, req.TopK, req.MinSimilarity)

	return &SearchRes{
		Query: meta,
		Count: len(items),
		Items: items,
	}, nil
}

// Health возвращает текущее состояние сервиса.
func (m *MatcherUseCase) Health(_ context.Context) *HealthRes {
	snap := m.snapshot.Load()

	return &HealthRes{
		OK:          true,
		Rows:        len(snap.Products),
		Indexed:     snap.Index.Len(),
		Device:      m.extractor.Device(),
		CSVExists:   m.catalogRepo.Exists(),
		IndexExists: m.indexRepo.MatrixExists(),
		IDsExists:   m.indexRepo.IDsExist(),
		CORSOrigins: m.corsOrigins,
	}
}

// processRecord обрабатывает одну запись каталога: получение изображения,
// векторизация, нормализация. Возвращает типизированный результат.
func (m *MatcherUseCase) processRecord(ctx context.Context, product domain.Product) recordOutcome {
	img, err := m.fetcher.OpenImage(ctx, product.ImageURL)
	if err != nil {
		return recordOutcome{ID: product.ID, Stage: "fetch", Err: err}
	}

	vec, err := m.extractor.Vectorize(ctx, img)
	if err != nil {
		return recordOutcome{ID: product.ID, Stage: "extract", Err: err}
	}

	return recordOutcome{ID: product.ID, Vector: domain.Normalize(vec)}
}

// loadQueryImage декодирует изображение запроса из загруженного файла либо по URL/пути.
func (m *MatcherUseCase) loadQueryImage(ctx context.Context, req *SearchReq) (image.Image, QueryMeta, error) {
	if len(req.FileData) > 0 {
		img, err := m.fetcher.DecodeUpload(req.FileData)
		if err != nil {
			return nil, QueryMeta{}, err
		}
		return img, QueryMeta{Source: "file", Filename: req.FileName}, nil
	}

	img, err := m.fetcher.OpenImage(ctx, req.ImageURL)
	if err != nil {
		return nil, QueryMeta{}, err
	}
	return img, QueryMeta{Source: "url_or_path", Value: req.ImageURL}, nil
}

// rank вычисляет близость запроса к каждому вектору индекса и возвращает первые topK
// результатов. Кандидаты упорядочены по убыванию оценки; при равных оценках раньше
// идёт запись с меньшим индексом сборки, чтобы ранжирование было воспроизводимым.
// Кандидаты ниже minSimilarity и идентификаторы, отсутствующие в таблице продуктов,
// отбрасываются; второе — допустимое расхождение индекса и каталога, не ошибка.
func (m *MatcherUseCase) rank(snap *domain.Snapshot, query []float32, topK int, minSimilarity float64) []SearchItem {
	index := snap.Index

	scores := make([]float64, index.Len())
	for i, vec := range index.Vectors {
		scores[i] = float64(domain.Dot(vec, query))
	}

	order := make([]int, index.Len())
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	items := make([]SearchItem, 0, topK)
	for _, idx := range order {
		if len(items) >= topK {
			break
		}

		score := scores[idx]
		if score < minSimilarity {
			continue
		}

		product, ok := snap.Product(index.IDs[idx])
		if !ok {
			continue
		}

		items = append(items, newSearchItem(product, score))
	}

	return items
}

// publishRebuilt отправляет событие пересборки внешним потребителям (best-effort).
func (m *MatcherUseCase) publishRebuilt(ctx context.Context, count int, skipped int, dim int) {
	if m.producer == nil {
		return
	}

	event := &IndexRebuiltEvent{
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UnixNano(),
		Count:          count,
		Skipped:        skipped,
		Dim:            dim,
	}
	if err := m.producer.PublishIndexRebuilt(ctx, event); err != nil {
		m.logger.Warnf("failed to publish index rebuilt event: %v", err)
	}
}

func newSearchItem(product domain.Product, score float64) SearchItem {
	item := SearchItem{
		ID:          product.ID,
		Name:        product.Name,
		ImageURL:    product.ImageURL,
		Brand:       product.Brand,
		Description: product.Description,
		Score:       score,
	}

	if product.Price != "" {
		if d, err := decimal.NewFromString(product.Price); err == nil {
			item.Price, _ = d.Float64()
		} else {
			item.Price = product.Price
		}
	}

	return item
}
