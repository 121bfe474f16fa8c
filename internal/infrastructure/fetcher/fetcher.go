package fetcher

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/internal/usecase"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/jimlawless/whereami"
)

// headerProfiles — упорядоченный набор комбинаций заголовков для обхода
// анти-скрейпинговых эвристик. Первый успешный профиль выигрывает.
var headerProfiles = []map[string]string{
	{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Connection":      "keep-alive",
	},
	{
		"User-Agent": "Mozilla/5.0",
		"Referer":    "https://www.google.com/",
		"Accept":     "*/*",
	},
	{
		"User-Agent": "curl/7.64.1",
		"Accept":     "*/*",
	},
}

// Fetcher разрешает источник изображения (URL, локальный путь, minio://bucket/key)
// в декодированное изображение, приведённое к трёхканальному RGB.
type Fetcher struct {
	cfg      *cfg.FetcherCfg
	data     *cfg.DataCfg
	client   *http.Client
	fallback *http.Client                   // независимый простой транспорт для финальной попытки
	cache    usecase.ImageCacheRepository   // опционален
	objects  usecase.ObjectStorageRepository // опционален
	logger   logger.Logger
}

func NewFetcher(
	cfg *cfg.FetcherCfg,
	data *cfg.DataCfg,
	cache usecase.ImageCacheRepository,
	objects usecase.ObjectStorageRepository,
	logger logger.Logger,
) *Fetcher {
	return &Fetcher{
		cfg:  cfg,
		data: data,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
			},
		},
		fallback: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:   cache,
		objects: objects,
		logger:  logger,
	}
}

// OpenImage возвращает декодированное цветное изображение для указанного источника.
func (f *Fetcher) OpenImage(ctx context.Context, source string) (image.Image, error) {
	s := strings.TrimSpace(source)

	var (
		data []byte
		err  error
	)
	switch {
	case hasHTTPScheme(s):
		data, err = f.fetchRemote(ctx, s)
	case strings.HasPrefix(s, "minio://"):
		data, err = f.fetchObject(ctx, s)
	default:
		data, err = f.readLocal(s)
	}
	if err != nil {
		return nil, err
	}

	return DecodeUpload(data)
}

// DecodeUpload декодирует байты загруженного файла и приводит их к RGB.
func (f *Fetcher) DecodeUpload(data []byte) (image.Image, error) {
	return DecodeUpload(data)
}

// fetchRemote скачивает изображение по HTTP(S).
//
// Для attempt = 1..MaxAttempts перебираются все профили заголовков по порядку;
// первый профиль, вернувший успешный статус с непустым телом, выигрывает сразу.
// Если в рамках попытки не сработал ни один профиль — пауза BaseDelay*2^(attempt-1)
// и следующая попытка. После исчерпания попыток выполняется одна финальная попытка
// независимым простым клиентом; при её неудаче пробрасывается последняя значимая ошибка.
// Отмена контекста проверяется между профилями и во время пауз.
func (f *Fetcher) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	if f.cache != nil {
		if data, _ := f.cache.GetImage(ctx, rawURL); len(data) > 0 {
			return data, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		for _, profile := range headerProfiles {
			if err := ctx.Err(); err != nil {
				return nil, e.Wrap(whereami.WhereAmI(), err)
			}

			data, err := f.tryProfile(ctx, f.client, rawURL, profile)
			if err == nil {
				f.storeInCache(ctx, rawURL, data)
				return data, nil
			}
			lastErr = err
		}

		if attempt < f.cfg.MaxAttempts {
			delay := f.cfg.BaseDelay * (1 << (attempt - 1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, e.Wrap(whereami.WhereAmI(), ctx.Err())
			}
		}
	}

	// Финальный фолбэк: простой клиент без кастомного транспорта, один профиль
	data, err := f.tryProfile(ctx, f.fallback, rawURL, map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	})
	if err == nil {
		f.storeInCache(ctx, rawURL, data)
		return data, nil
	}
	if lastErr == nil {
		lastErr = err
	}

	return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %s: %v", e.ErrFetchFailed, rawURL, lastErr))
}

// tryProfile выполняет один запрос с указанным профилем заголовков.
// В профиль без Referer подставляется Referer, образованный от хоста цели.
func (f *Fetcher) tryProfile(ctx context.Context, client *http.Client, rawURL string, profile map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	for k, v := range profile {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Referer") == "" {
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			req.Header.Set("Referer", fmt.Sprintf("https://%s/", u.Host))
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("downloaded content is empty")
	}

	return data, nil
}

// fetchObject читает источник вида minio://bucket/key из объектного хранилища.
func (f *Fetcher) fetchObject(ctx context.Context, source string) ([]byte, error) {
	if f.objects == nil {
		return nil, e.Wrap(source, e.ErrFetchFailed)
	}

	rest := strings.TrimPrefix(source, "minio://")
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return nil, e.Wrap(source, e.ErrFetchFailed)
	}

	data, err := f.objects.Download(ctx, bucket, key)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %s: %v", e.ErrFetchFailed, source, err))
	}

	return data, nil
}

// readLocal разрешает локальный путь по упорядоченному списку базовых директорий:
// путь как есть, затем корень проекта, затем каталог данных. Побеждает первый существующий.
func (f *Fetcher) readLocal(path string) ([]byte, error) {
	candidates := []string{
		path,
		filepath.Join(f.data.ProjectRoot, path),
		filepath.Join(f.data.DataDir, path),
	}

	for _, cand := range candidates {
		if info, err := os.Stat(cand); err == nil && !info.IsDir() {
			data, err := os.ReadFile(cand)
			if err != nil {
				return nil, e.Wrap(whereami.WhereAmI(), err)
			}
			return data, nil
		}
	}

	return nil, e.Wrap(path, e.ErrImageNotFound)
}

func (f *Fetcher) storeInCache(ctx context.Context, source string, data []byte) {
	if f.cache == nil {
		return
	}
	if err := f.cache.SetImage(ctx, source, data); err != nil {
		f.logger.Warnf("failed to cache image bytes: %v", err)
	}
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
