package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/visual-matcher/internal/cfg"
	v1Http "github.com/DRSN-tech/visual-matcher/internal/delivery/v1/http"
	"github.com/DRSN-tech/visual-matcher/internal/infrastructure/extractor"
	"github.com/DRSN-tech/visual-matcher/internal/infrastructure/fetcher"
	kafkaInfra "github.com/DRSN-tech/visual-matcher/internal/infrastructure/kafka"
	"github.com/DRSN-tech/visual-matcher/internal/repository/catalog"
	indexRepo "github.com/DRSN-tech/visual-matcher/internal/repository/index"
	s3Repo "github.com/DRSN-tech/visual-matcher/internal/repository/minio"
	redisRepo "github.com/DRSN-tech/visual-matcher/internal/repository/redis"
	"github.com/DRSN-tech/visual-matcher/internal/usecase"
	"github.com/DRSN-tech/visual-matcher/pkg/clients"
	"github.com/DRSN-tech/visual-matcher/pkg/closer"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const shutdownTimeout = 10 * time.Second

// App связывает зависимости сервиса и управляет их жизненным циклом.
type App struct {
	cfg     *config.Config
	logger  logger.Logger
	httpSrv *v1Http.Server
	closer  *closer.Closer
	uc      usecase.MatcherUC
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	cl := closer.NewCloser(0)

	// Опциональный кэш байтов изображений
	var imageCache usecase.ImageCacheRepository
	if cfg.Redis != nil {
		redisClient := clients.NewRedisClient(cfg.Redis)
		redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(redisCtx)
		redisCancel()
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		imageCache = redisRepo.NewCacheRepo(redisClient, cfg.Redis, log)
		cl.Add(func(_ context.Context) error {
			return redisClient.Client.Close()
		})
		log.Infof("image cache enabled, redis addr: %s", cfg.Redis.Addr)
	}

	// Опциональное объектное хранилище для источников minio://
	var objects usecase.ObjectStorageRepository
	if cfg.Minio != nil {
		minioClient, err := clients.NewMinIOClient(cfg.Minio)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName)
		minioCancel()
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		objects = s3Repo.NewImageRepo(minioClient, cfg.Minio)
		log.Infof("object storage enabled, minio endpoint: %s", cfg.Minio.MinioEndpoint)
	}

	// Опциональные события пересборки
	var producer usecase.EventProducerInfra
	if cfg.Kafka != nil {
		kafkaProducer, err := kafkaInfra.NewProducer(log, cfg.Kafka)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if err := kafkaProducer.EnsureTopic(10 * time.Second); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		producer = kafkaProducer
		cl.Add(func(_ context.Context) error {
			return kafkaProducer.Close()
		})
	}

	matcherUC := usecase.NewMatcherUC(
		catalog.NewCatalogRepo(cfg.Data),
		indexRepo.NewIndexRepo(cfg.Data),
		fetcher.NewFetcher(cfg.Fetcher, cfg.Data, imageCache, objects, log),
		extractor.NewExtractor(cfg.Extractor, log),
		producer,
		log,
		cfg.Cors.AllowedOrigins,
	)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, log)
	router.Init(matcherUC, cfg.Cors)

	httpSrv := v1Http.NewServer(r, cfg.Http)
	cl.Add(func(ctx context.Context) error {
		return httpSrv.Stop(ctx)
	})

	return &App{
		cfg:     cfg,
		logger:  log,
		httpSrv: httpSrv,
		closer:  cl,
		uc:      matcherUC,
	}, nil
}

// Run загружает состояние, запускает HTTP-сервер и блокируется до сигнала завершения.
func (a *App) Run() error {
	// Загрузка каталога и индекса до приёма трафика (best-effort)
	a.uc.Bootstrap(context.Background())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Errorf(err, "HTTP server failed")
			errCh <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(shutdownCtx); err != nil {
		a.logger.Warnf("shutdown finished with errors: %v", err)
	} else {
		a.logger.Infof("Application shutdown complete")
	}

	return appErr
}
