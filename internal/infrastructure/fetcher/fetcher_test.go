package fetcher

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFetcher(t *testing.T, dataDir string) *Fetcher {
	t.Helper()
	return NewFetcher(
		&cfg.FetcherCfg{
			Timeout:     5 * time.Second,
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
		},
		&cfg.DataCfg{ProjectRoot: dataDir, DataDir: dataDir},
		nil,
		nil,
		logger.NewSlogLogger(),
	)
}

// pngBytes кодирует одноцветное изображение 2x2 в PNG.
func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestOpenImage_RemoteFirstProfileWins(t *testing.T) {
	body := pngBytes(t, color.NRGBA{R: 255, A: 255})

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	f := testFetcher(t, t.TempDir())
	img, err := f.OpenImage(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, int32(1), requests.Load())
}

func TestOpenImage_RemoteProfileFallback(t *testing.T) {
	// Первый профиль (Chrome UA) отклоняется, второй (Mozilla/5.0 + google Referer) проходит.
	body := pngBytes(t, color.NRGBA{G: 255, A: 255})

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("User-Agent") != "Mozilla/5.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "https://www.google.com/", r.Header.Get("Referer"))
		w.Write(body)
	}))
	defer srv.Close()

	f := testFetcher(t, t.TempDir())
	img, err := f.OpenImage(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, int32(2), requests.Load())
}

func TestOpenImage_RefererInjectedFromHost(t *testing.T) {
	body := pngBytes(t, color.NRGBA{B: 255, A: 255})

	var gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		w.Write(body)
	}))
	defer srv.Close()

	f := testFetcher(t, t.TempDir())
	_, err := f.OpenImage(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)

	host := strings.TrimPrefix(srv.URL, "http://")
	assert.Equal(t, "https://"+host+"/", gotReferer)
}

func TestOpenImage_FinalFallbackClient(t *testing.T) {
	// Все профили всех попыток отклоняются, проходит только финальный простой клиент.
	body := pngBytes(t, color.NRGBA{R: 255, G: 255, A: 255})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Mozilla/5.0 (Windows NT 10.0; Win64; x64)" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	f := testFetcher(t, t.TempDir())
	img, err := f.OpenImage(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestOpenImage_RemoteExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher(t, t.TempDir())
	_, err := f.OpenImage(context.Background(), srv.URL+"/missing.png")
	require.ErrorIs(t, err, e.ErrFetchFailed)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenImage_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := testFetcher(t, t.TempDir())
	_, err := f.OpenImage(ctx, srv.URL+"/a.png")
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenImage_LocalPathResolution(t *testing.T) {
	dir := t.TempDir()
	body := pngBytes(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.png"), body, 0o644))

	f := testFetcher(t, dir)

	// Относительный путь разрешается через каталог данных.
	img, err := f.OpenImage(context.Background(), "local.png")
	require.NoError(t, err)
	assert.NotNil(t, img)

	// Абсолютный путь читается как есть.
	img, err = f.OpenImage(context.Background(), filepath.Join(dir, "local.png"))
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestOpenImage_LocalNotFound(t *testing.T) {
	f := testFetcher(t, t.TempDir())
	_, err := f.OpenImage(context.Background(), "no-such-file.png")
	require.ErrorIs(t, err, e.ErrImageNotFound)
}

func TestOpenImage_MinioWithoutClient(t *testing.T) {
	f := testFetcher(t, t.TempDir())
	_, err := f.OpenImage(context.Background(), "minio://bucket/key.png")
	require.ErrorIs(t, err, e.ErrFetchFailed)
}

func TestDecodeUpload_InvalidBytes(t *testing.T) {
	_, err := DecodeUpload([]byte("definitely not an image"))
	require.ErrorIs(t, err, e.ErrDecodeFailed)
}

func TestDecodeUpload_FlattensTransparencyToWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.Set(0, 0, color.NRGBA{}) // полностью прозрачный пиксель

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, err := DecodeUpload(buf.Bytes())
	require.NoError(t, err)

	r, g, b, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestDecodeUpload_OpaquePixelsPreserved(t *testing.T) {
	img, err := DecodeUpload(pngBytes(t, color.NRGBA{R: 200, G: 100, B: 50, A: 255}))
	require.NoError(t, err)

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(200<<8|200), r)
	assert.Equal(t, uint32(100<<8|100), g)
	assert.Equal(t, uint32(50<<8|50), b)
}
