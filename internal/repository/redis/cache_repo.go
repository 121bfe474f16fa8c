package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/DRSN-tech/visual-matcher/internal/cfg"
	"github.com/DRSN-tech/visual-matcher/pkg/clients"
	"github.com/DRSN-tech/visual-matcher/pkg/e"
	"github.com/DRSN-tech/visual-matcher/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// CacheRepo кэширует сырые байты скачанных изображений между пересборками индекса.
// Кэш некритичен: любая ошибка логируется и трактуется как промах.
type CacheRepo struct {
	client *clients.RedisClient
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// GetImage возвращает закэшированные байты изображения или (nil, nil) при промахе.
func (c *CacheRepo) GetImage(ctx context.Context, source string) ([]byte, error) {
	data, err := c.client.Client.Get(ctx, c.imageKey(source)).Bytes()
	if err != nil {
		if err == r.Nil {
			return nil, nil // cache miss
		}
		c.logger.Warnf("Redis GET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, nil
	}

	return data, nil
}

// SetImage кэширует байты изображения с TTL. Ошибки записи игнорируются с логированием.
func (c *CacheRepo) SetImage(ctx context.Context, source string, data []byte) error {
	if err := c.client.Client.Set(ctx, c.imageKey(source), data, c.cfg.ImageTTL).Err(); err != nil {
		c.logger.Warnf("Redis SET failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}

	return nil
}

// imageKey возвращает Redis-ключ для источника изображения.
func (c *CacheRepo) imageKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return fmt.Sprintf("image:%s", hex.EncodeToString(sum[:]))
}
