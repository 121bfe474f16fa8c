package usecase

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/DRSN-tech/visual-matcher/internal/domain"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vecImage несёт вектор, который заглушка экстрактора вернёт для этого изображения.
type vecImage struct {
	image.Image
	vec []float32
}

func newVecImage(vec ...float32) vecImage {
	return vecImage{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), vec: vec}
}

type stubCatalog struct {
	products []domain.Product
	err      error
	exists   bool
}

func (s *stubCatalog) Load(context.Context) ([]domain.Product, error) {
	return s.products, s.err
}

func (s *stubCatalog) Exists() bool { return s.exists }

type stubIndexRepo struct {
	saved     *domain.Index
	saveErr   error
	loadIndex *domain.Index
	loadErr   error
	hasMatrix bool
	hasIDs    bool
}

func (s *stubIndexRepo) Save(_ context.Context, index *domain.Index) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = index
	return nil
}

func (s *stubIndexRepo) Load(context.Context) (*domain.Index, error) {
	return s.loadIndex, s.loadErr
}

func (s *stubIndexRepo) MatrixExists() bool { return s.hasMatrix }
func (s *stubIndexRepo) IDsExist() bool     { return s.hasIDs }

type stubFetcher struct {
	images    map[string]image.Image
	upload    image.Image
	uploadErr error
}

func (s *stubFetcher) OpenImage(_ context.Context, source string) (image.Image, error) {
	if img, ok := s.images[source]; ok {
		return img, nil
	}
	return nil, e.Wrap(source, e.ErrImageNotFound)
}

func (s *stubFetcher) DecodeUpload([]byte) (image.Image, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return s.upload, nil
}

type stubExtractor struct {
	device  string
	fixed   []float32
	err     error
	started chan struct{} // если задан, сигнал о входе в Vectorize
	release chan struct{} // если задан, Vectorize блокируется до закрытия
}

func (s *stubExtractor) Vectorize(_ context.Context, img image.Image) ([]float32, error) {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	if vi, ok := img.(vecImage); ok {
		return append([]float32(nil), vi.vec...), nil
	}
	return s.fixed, nil
}

func (s *stubExtractor) Device() string { return s.device }

type stubProducer struct {
	events []*IndexRebuiltEvent
	err    error
}

func (s *stubProducer) PublishIndexRebuilt(_ context.Context, event *IndexRebuiltEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// threeProductFixture — каталог из трёх товаров с ортогональными векторами.
func threeProductFixture() (*stubCatalog, *stubFetcher) {
	catalog := &stubCatalog{
		exists: true,
		products: []domain.Product{
			{ID: "a", ImageURL: "a.jpg", Name: "Alpha", Price: "19.99", Brand: "Acme"},
			{ID: "b", ImageURL: "b.jpg", Name: "Beta", Price: "set of 3"},
			{ID: "c", ImageURL: "c.jpg", Name: "Gamma"},
		},
	}
	fetcher := &stubFetcher{
		images: map[string]image.Image{
			"a.jpg": newVecImage(1, 0, 0),
			"b.jpg": newVecImage(0, 1, 0),
			"c.jpg": newVecImage(0, 0, 1),
		},
	}
	return catalog, fetcher
}

func newUC(catalog *stubCatalog, repo *stubIndexRepo, fetcher *stubFetcher, ex *stubExtractor, producer EventProducerInfra) *MatcherUseCase {
	return NewMatcherUC(catalog, repo, fetcher, ex, producer, logger.NewSlogLogger(), []string{"http://localhost:5173"})
}

func TestBuildIndex_ThenSearchRoundTrip(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	repo := &stubIndexRepo{}
	m := newUC(catalog, repo, fetcher, &stubExtractor{device: "cpu"}, nil)
	ctx := context.Background()

	res, err := m.BuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, "index built", res.Status)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 0, res.Skipped)
	require.NotNil(t, repo.saved)
	assert.Equal(t, []string{"a", "b", "c"}, repo.saved.IDs)

	fetcher.upload = newVecImage(1, 0, 0)
	out, err := m.Search(ctx, &SearchReq{FileData: []byte{1}, FileName: "q.png", TopK: 2})
	require.NoError(t, err)

	assert.Equal(t, "file", out.Query.Source)
	assert.Equal(t, "q.png", out.Query.Filename)
	require.Equal(t, 2, out.Count)

	// Точное совпадение с "a", затем равные нулевые оценки в порядке сборки.
	assert.Equal(t, "a", out.Items[0].ID)
	assert.InDelta(t, 1.0, out.Items[0].Score, 1e-6)
	assert.Equal(t, "Alpha", out.Items[0].Name)
	assert.Equal(t, 19.99, out.Items[0].Price)
	assert.Equal(t, "b", out.Items[1].ID)
	assert.Equal(t, "set of 3", out.Items[1].Price)
}

func TestBuildIndex_SkipsFailedRecords(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	delete(fetcher.images, "b.jpg") // изображение недоступно

	repo := &stubIndexRepo{}
	m := newUC(catalog, repo, fetcher, &stubExtractor{}, nil)

	res, err := m.BuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"a", "c"}, repo.saved.IDs)
}

func TestBuildIndex_EmptyResultFatal(t *testing.T) {
	catalog, _ := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, &stubFetcher{}, &stubExtractor{}, nil)

	_, err := m.BuildIndex(context.Background())
	require.ErrorIs(t, err, e.ErrEmptyIndex)
}

func TestBuildIndex_CatalogError(t *testing.T) {
	catalog := &stubCatalog{err: e.Wrap("products.csv", e.ErrCSVNotFound)}
	m := newUC(catalog, &stubIndexRepo{}, &stubFetcher{}, &stubExtractor{}, nil)

	_, err := m.BuildIndex(context.Background())
	require.ErrorIs(t, err, e.ErrCSVNotFound)
}

func TestBuildIndex_SaveError(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	repo := &stubIndexRepo{saveErr: errors.New("disk full")}
	m := newUC(catalog, repo, fetcher, &stubExtractor{}, nil)

	_, err := m.BuildIndex(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// Неудавшаяся сборка не публикует снимок.
	_, err = m.Search(context.Background(), &SearchReq{ImageURL: "a.jpg", TopK: 1})
	require.ErrorIs(t, err, e.ErrIndexNotReady)
}

func TestBuildIndex_RejectsConcurrentBuild(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	ex := &stubExtractor{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := newUC(catalog, &stubIndexRepo{}, fetcher, ex, nil)

	done := make(chan error, 1)
	go func() {
		_, err := m.BuildIndex(context.Background())
		done <- err
	}()

	<-ex.started
	_, err := m.BuildIndex(context.Background())
	require.ErrorIs(t, err, e.ErrBuildInProgress)

	close(ex.release)
	require.NoError(t, <-done)
}

func TestBuildIndex_PublishesEvent(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	delete(fetcher.images, "c.jpg")
	producer := &stubProducer{}
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, producer)

	_, err := m.BuildIndex(context.Background())
	require.NoError(t, err)

	require.Len(t, producer.events, 1)
	event := producer.events[0]
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 2, event.Count)
	assert.Equal(t, 1, event.Skipped)
	assert.Equal(t, 3, event.Dim)
}

func TestBuildIndex_ProducerErrorNotFatal(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	producer := &stubProducer{err: errors.New("broker down")}
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, producer)

	res, err := m.BuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
}

func TestSearch_Validation(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, nil)

	_, err := m.Search(context.Background(), &SearchReq{ImageURL: "a.jpg", TopK: 5, MinSimilarity: 1.5})
	require.ErrorIs(t, err, e.ErrMinSimilarityRange)

	_, err = m.Search(context.Background(), &SearchReq{ImageURL: "a.jpg", TopK: 5, MinSimilarity: -0.1})
	require.ErrorIs(t, err, e.ErrMinSimilarityRange)

	_, err = m.Search(context.Background(), &SearchReq{ImageURL: "a.jpg", TopK: 0})
	require.ErrorIs(t, err, e.ErrInvalidTopK)
}

func TestSearch_IndexNotReady(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, nil)

	_, err := m.Search(context.Background(), &SearchReq{ImageURL: "a.jpg", TopK: 5})
	require.ErrorIs(t, err, e.ErrIndexNotReady)
}

func TestSearch_MinSimilarityFilter(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, nil)
	ctx := context.Background()

	_, err := m.BuildIndex(ctx)
	require.NoError(t, err)

	fetcher.images["query.jpg"] = newVecImage(1, 0, 0)
	out, err := m.Search(ctx, &SearchReq{ImageURL: "query.jpg", TopK: 10, MinSimilarity: 0.5})
	require.NoError(t, err)

	require.Equal(t, 1, out.Count)
	assert.Equal(t, "a", out.Items[0].ID)
	assert.Equal(t, "url_or_path", out.Query.Source)
	assert.Equal(t, "query.jpg", out.Query.Value)
}

func TestSearch_TieBreakByBuildOrder(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, nil)

	// Снимок с двумя одинаковыми векторами публикуется напрямую.
	index := domain.NewIndex(
		[][]float32{{0, 1, 0}, {1, 0, 0}, {1, 0, 0}},
		[]string{"b", "a", "c"},
	)
	m.snapshot.Store(domain.NewSnapshot(index, catalog.products))

	fetcher.images["query.jpg"] = newVecImage(1, 0, 0)
	out, err := m.Search(context.Background(), &SearchReq{ImageURL: "query.jpg", TopK: 3})
	require.NoError(t, err)

	require.Equal(t, 3, out.Count)
	assert.Equal(t, "a", out.Items[0].ID)
	assert.Equal(t, "c", out.Items[1].ID)
	assert.Equal(t, "b", out.Items[2].ID)
}

func TestSearch_SkipsIDsMissingFromCatalog(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, nil)

	index := domain.NewIndex(
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"ghost", "b"},
	)
	m.snapshot.Store(domain.NewSnapshot(index, catalog.products))

	fetcher.images["query.jpg"] = newVecImage(1, 0, 0)
	out, err := m.Search(context.Background(), &SearchReq{ImageURL: "query.jpg", TopK: 5})
	require.NoError(t, err)

	require.Equal(t, 1, out.Count)
	assert.Equal(t, "b", out.Items[0].ID)
}

func TestSearch_QueryImageError(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	m := newUC(catalog, &stubIndexRepo{}, fetcher, &stubExtractor{}, nil)

	_, err := m.BuildIndex(context.Background())
	require.NoError(t, err)

	_, err = m.Search(context.Background(), &SearchReq{ImageURL: "missing.jpg", TopK: 5})
	require.ErrorIs(t, err, e.ErrImageNotFound)

	fetcher.uploadErr = e.Wrap("bad bytes", e.ErrDecodeFailed)
	_, err = m.Search(context.Background(), &SearchReq{FileData: []byte{1}, TopK: 5})
	require.ErrorIs(t, err, e.ErrDecodeFailed)
}

func TestHealth_ReflectsState(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	repo := &stubIndexRepo{hasMatrix: false, hasIDs: false}
	m := newUC(catalog, repo, fetcher, &stubExtractor{device: "cuda"}, nil)
	ctx := context.Background()

	health := m.Health(ctx)
	assert.True(t, health.OK)
	assert.Equal(t, 0, health.Rows)
	assert.Equal(t, 0, health.Indexed)
	assert.Equal(t, "cuda", health.Device)
	assert.True(t, health.CSVExists)
	assert.False(t, health.IndexExists)
	assert.Equal(t, []string{"http://localhost:5173"}, health.CORSOrigins)

	_, err := m.BuildIndex(ctx)
	require.NoError(t, err)

	health = m.Health(ctx)
	assert.Equal(t, 3, health.Rows)
	assert.Equal(t, 3, health.Indexed)
}

func TestBootstrap_LoadsExistingIndex(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	repo := &stubIndexRepo{
		hasMatrix: true,
		hasIDs:    true,
		loadIndex: domain.NewIndex([][]float32{{1, 0, 0}}, []string{"a"}),
	}
	// Экстрактор с ошибкой: сборка при старте не должна запускаться.
	m := newUC(catalog, repo, fetcher, &stubExtractor{err: errors.New("extractor offline")}, nil)

	m.Bootstrap(context.Background())

	health := m.Health(context.Background())
	assert.Equal(t, 1, health.Indexed)
	assert.Equal(t, 3, health.Rows)
}

func TestBootstrap_BuildsWhenNoArtifacts(t *testing.T) {
	catalog, fetcher := threeProductFixture()
	repo := &stubIndexRepo{}
	m := newUC(catalog, repo, fetcher, &stubExtractor{}, nil)

	m.Bootstrap(context.Background())

	health := m.Health(context.Background())
	assert.Equal(t, 3, health.Indexed)
	require.NotNil(t, repo.saved)
}

func TestBootstrap_SurvivesCatalogFailure(t *testing.T) {
	catalog := &stubCatalog{err: e.Wrap("products.csv", e.ErrCSVNotFound)}
	m := newUC(catalog, &stubIndexRepo{}, &stubFetcher{}, &stubExtractor{}, nil)

	m.Bootstrap(context.Background())

	health := m.Health(context.Background())
	assert.True(t, health.OK)
	assert.Equal(t, 0, health.Indexed)
}
