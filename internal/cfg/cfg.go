package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Http      *HTTPConfig
	Cors      *CorsCfg
	Data      *DataCfg
	Fetcher   *FetcherCfg
	Extractor *ExtractorCfg
	Redis     *RedisCfg  // nil, если REDIS_ADDR не задан
	Kafka     *KafkaCfg  // nil, если KAFKA_BROKERS не задан
	Minio     *MinIOCfg  // nil, если MINIO_ENDPOINT не задан
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type CorsCfg struct {
	AllowedOrigins []string
}

// DataCfg описывает расположение каталога и артефактов индекса.
type DataCfg struct {
	ProjectRoot string // корень проекта, относительно которого разрешаются локальные пути изображений
	DataDir     string
	CSVPath     string // products.csv
	IndexPath   string // embeddings.bin — матрица эмбеддингов
	IDsPath     string // ids.json — параллельный список идентификаторов
}

// FetcherCfg описывает параметры загрузки изображений по сети.
type FetcherCfg struct {
	Timeout     time.Duration // таймаут одной попытки
	MaxAttempts int
	BaseDelay   time.Duration // базовая задержка экспоненциального отступления
}

type ExtractorCfg struct {
	BaseURL       string
	Timeout       time.Duration
	MaxConcurrent int
	MaxRetries    int
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ImageTTL    time.Duration // TTL кэша байтов изображений
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string
	BucketName        string
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	data := loadDataCfg()

	fetcher, err := loadFetcherCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	extractor, err := loadExtractorCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:      http,
		Cors:      loadCorsCfg(),
		Data:      data,
		Fetcher:   fetcher,
		Extractor: extractor,
		Redis:     redis,
		Kafka:     kafka,
		Minio:     minio,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 60 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadCorsCfg() *CorsCfg {
	defaultOrigins := []string{"http://localhost:5173", "http://127.0.0.1:5173"}

	origins := defaultOrigins
	if raw := getEnv("CORS_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = defaultOrigins
		}
	}

	return &CorsCfg{AllowedOrigins: origins}
}

func loadDataCfg() *DataCfg {
	const defaultDataDir = "data"

	root := getEnvOrDefault("PROJECT_ROOT", ".")
	dataDir := getEnvOrDefault("DATA_DIR", filepath.Join(root, defaultDataDir))

	return &DataCfg{
		ProjectRoot: root,
		DataDir:     dataDir,
		CSVPath:     getEnvOrDefault("CSV_PATH", filepath.Join(dataDir, "products.csv")),
		IndexPath:   getEnvOrDefault("INDEX_PATH", filepath.Join(dataDir, "embeddings.bin")),
		IDsPath:     getEnvOrDefault("IDS_PATH", filepath.Join(dataDir, "ids.json")),
	}
}

func loadFetcherCfg(log logger.Logger) (*FetcherCfg, error) {
	const (
		defaultTimeout     = 15 * time.Second
		defaultMaxAttempts = 3
		defaultBaseDelay   = 500 * time.Millisecond
	)

	timeout, err := parseDurationEnv("FETCH_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid FETCH_TIMEOUT")
		return nil, err
	}

	maxAttempts, err := parseIntEnv("FETCH_MAX_ATTEMPTS", defaultMaxAttempts)
	if err != nil {
		log.Errorf(err, "invalid FETCH_MAX_ATTEMPTS")
		return nil, err
	}

	baseDelay, err := parseDurationEnv("FETCH_BASE_DELAY", defaultBaseDelay)
	if err != nil {
		log.Errorf(err, "invalid FETCH_BASE_DELAY")
		return nil, err
	}

	return &FetcherCfg{
		Timeout:     timeout,
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
	}, nil
}

func loadExtractorCfg(log logger.Logger) (*ExtractorCfg, error) {
	const (
		defaultBaseURL       = "http://extractor:8000"
		defaultTimeout       = 30 * time.Second
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
	)

	timeout, err := parseDurationEnv("EXTRACTOR_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTOR_TIMEOUT")
		return nil, err
	}

	maxConcurrent, err := parseIntEnv("EXTRACTOR_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTOR_MAX_CONCURRENT")
		return nil, err
	}

	maxRetries, err := parseIntEnv("EXTRACTOR_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid EXTRACTOR_MAX_RETRIES")
		return nil, err
	}

	return &ExtractorCfg{
		BaseURL:       strings.TrimRight(getEnvOrDefault("EXTRACTOR_URL", defaultBaseURL), "/"),
		Timeout:       timeout,
		MaxConcurrent: maxConcurrent,
		MaxRetries:    maxRetries,
	}, nil
}

// loadRedisCfg возвращает nil-конфигурацию, если REDIS_ADDR не задан: кэш изображений опционален.
func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultImageTTL     = 30 * time.Minute
	)

	addr := getEnv("REDIS_ADDR")
	if addr == "" {
		return nil, nil
	}

	dbStr := getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB))
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("REDIS_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("REDIS_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_WRITE_TIMEOUT")
		return nil, err
	}

	imageTTL, err := parseDurationEnv("IMAGE_CACHE_TTL", defaultImageTTL)
	if err != nil {
		log.Errorf(err, "invalid IMAGE_CACHE_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:        addr,
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		ImageTTL:    imageTTL,
	}, nil
}

// loadKafkaCfg возвращает nil-конфигурацию, если KAFKA_BROKERS не задан: события пересборки опциональны.
func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultTopic             = "index.events"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := getEnv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, nil
	}
	brokers := strings.Split(brokerStr, ",")

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

// loadMinIOCfg возвращает nil-конфигурацию, если MINIO_ENDPOINT не задан:
// источники вида minio://bucket/key в этом случае недоступны.
func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const defaultUseSSL = false

	endpoint := getEnv("MINIO_ENDPOINT")
	if endpoint == "" {
		return nil, nil
	}

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	bucket := getEnv("BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable is required")
	}

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        bucket,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
