package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/jitter"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
)

// Extractor — клиент внешнего сервиса извлечения признаков.
// Один вызов Vectorize соответствует ровно одному обращению к модели;
// одновременные обращения ограничены семафором, т.к. сервис обычно
// обслуживается единственным ускорителем.
type Extractor struct {
	cfg    *cfg.ExtractorCfg
	client *http.Client
	sem    chan struct{}
	logger logger.Logger

	mu           sync.RWMutex
	device       string
	modelVersion string
}

type vectorizeRequest struct {
	ImageData string `json:"image_data"` // base64 PNG
}

type vectorizeResponse struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	Device       string    `json:"device"`
}

func NewExtractor(cfg *cfg.ExtractorCfg, logger logger.Logger) *Extractor {
	return &Extractor{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		logger: logger,
		device: "unknown",
	}
}

// Vectorize отправляет изображение на векторизацию с retry-логикой и экспоненциальной задержкой.
func (ex *Extractor) Vectorize(ctx context.Context, img image.Image) ([]float32, error) {
	const (
		op         = "Extractor.Vectorize"
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	payload, err := encodeRequest(img)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var lastErr error
	for attempt := 0; attempt < ex.cfg.MaxRetries; attempt++ {
		vector, err := ex.vectorizeOnce(ctx, payload)
		if err == nil {
			return vector, nil
		}
		lastErr = err

		if attempt == ex.cfg.MaxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		ex.logger.Warnf("vectorization failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("all %d attempts failed: %w", ex.cfg.MaxRetries, lastErr))
}

// Device возвращает метку устройства, сообщённую сервисом в последнем ответе.
func (ex *Extractor) Device() string {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.device
}

// ModelVersion возвращает версию модели из последнего ответа сервиса.
func (ex *Extractor) ModelVersion() string {
	ex.mu.RLock()
	defer ex.mu.RUnlock()
	return ex.modelVersion
}

// vectorizeOnce выполняет одно обращение к сервису под семафором.
func (ex *Extractor) vectorizeOnce(ctx context.Context, payload []byte) ([]float32, error) {
	select {
	case ex.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-ex.sem }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ex.cfg.BaseURL+"/vectorize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ex.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	var res vectorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	if len(res.Vector) == 0 {
		return nil, e.ErrEmptyVector
	}

	ex.remember(res.Device, res.ModelVersion)

	return res.Vector, nil
}

func (ex *Extractor) remember(device string, modelVersion string) {
	if device == "" && modelVersion == "" {
		return
	}

	ex.mu.Lock()
	defer ex.mu.Unlock()
	if device != "" {
		ex.device = device
	}
	if modelVersion != "" {
		ex.modelVersion = modelVersion
	}
}

// encodeRequest сериализует изображение в PNG и упаковывает его в JSON-запрос.
func encodeRequest(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return json.Marshal(vectorizeRequest{
		ImageData: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}
