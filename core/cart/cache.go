package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is a cache-aside copy of carts in Redis. Concurrent misses for the
// same user share one load. Every Delete bumps a per-user generation, and a
// load only populates the cache if the generation it started under is still
// current, so a load racing a mutation never caches the old cart.
type Cache struct {
	client  redis.Cmdable
	baseTTL time.Duration
	log     logrus.FieldLogger
	sfg     singleflight.Group
}

func NewCache(client redis.Cmdable, ttl time.Duration, log logrus.FieldLogger) *Cache {
	return &Cache{
		client:  client,
		baseTTL: ttl,
		log:     log,
	}
}

// Get returns the cached cart of userID or loads and caches it. Redis
// failures degrade to a plain load.
func (c *Cache) Get(ctx context.Context, userID string, load func(context.Context) (Cart, error)) (Cart, error) {
	v, err, _ := c.sfg.Do(userID, func() (interface{}, error) {
		cart, err := c.read(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			c.log.WithError(err).WithField("user_id", userID).Warn("reading cached cart")
		}

		gen, genErr := c.generation(ctx, userID)

		cart, err = load(ctx)
		if err != nil {
			return Cart{}, err
		}

		if genErr != nil {
			c.log.WithError(genErr).WithField("user_id", userID).Warn("reading cart generation, not caching")
			return cart, nil
		}
		if err := c.write(ctx, userID, gen, cart); err != nil {
			c.log.WithError(err).WithField("user_id", userID).Warn("caching cart")
		}
		return cart, nil
	})
	if err != nil {
		return Cart{}, err
	}

	return v.(Cart), nil
}

// Delete drops the cached cart and invalidates loads already in flight.
func (c *Cache) Delete(ctx context.Context, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey(userID))
		p.PExpire(ctx, genKey(userID), c.genTTL())
		p.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (c *Cache) generation(ctx context.Context, userID string) (string, error) {
	gen, err := c.client.Get(ctx, genKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return gen, nil
}

func (c *Cache) read(ctx context.Context, userID string) (Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{}, ErrCacheMiss
	}
	if err != nil {
		return Cart{}, fmt.Errorf("redis get: %w", err)
	}

	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return Cart{}, fmt.Errorf("unmarshal cart: %w", err)
	}
	cart.UserID = userID
	for i := range cart.Lines {
		cart.Lines[i].UserID = userID
	}

	return cart, nil
}

// setIfGeneration stores ARGV[2] at KEYS[1] for ARGV[3] ms unless the
// generation at KEYS[2] moved away from ARGV[1].
var setIfGeneration = redis.NewScript(`
if (redis.call('GET', KEYS[2]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

func (c *Cache) write(ctx context.Context, userID, gen string, cart Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	// Jitter spreads expirations of carts cached at the same moment.
	ttl := c.baseTTL + time.Duration(rand.Int63n(int64(c.baseTTL)/5+1))

	keys := []string{cacheKey(userID), genKey(userID)}
	stored, err := setIfGeneration.Run(ctx, c.client, keys, gen, data, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if stored == 0 {
		c.log.WithField("user_id", userID).Debug("cart changed while loading, not cached")
	}
	return nil
}

// genTTL must outlive any load in flight: an expired generation reads as 0
// again.
func (c *Cache) genTTL() time.Duration {
	return 2*c.baseTTL + time.Minute
}

func cacheKey(userID string) string {
	return "cart:" + userID
}

func genKey(userID string) string {
	return "cart-gen:" + userID
}
