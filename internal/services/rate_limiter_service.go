package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/redis"

	"github.com/sirupsen/logrus"
)

// Lua скрипт для атомарной проверки и инкремента счетчика в окне фиксированной длины
const rateLimitLuaScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
    redis.call('EXPIRE', key, ttl)
end

if current > limit then
    return {0, current, limit}
end
return {1, current, limit}
`

const rateLimitWindow = 60 // секунды

// RateLimiterService ограничивает частоту подключений с одного адреса
type RateLimiterService struct {
	redis  *redis.Client
	config *config.RateLimitConfig
	log    *logger.Logger
}

// RateLimitResult содержит результат проверки лимита
type RateLimitResult struct {
	Allowed     bool
	Remaining   int
	Limit       int
	ResetAt     time.Time
	BannedUntil time.Time
	RetryAfter  int
}

// NewRateLimiterService создает ограничитель частоты
func NewRateLimiterService(redis *redis.Client, cfg *config.RateLimitConfig, log *logger.Logger) *RateLimiterService {
	return &RateLimiterService{
		redis:  redis,
		config: cfg,
		log:    log,
	}
}

// CheckLimit учитывает очередную попытку с адреса ip. При ошибке Redis
// запрос пропускается (fail-open).
func (s *RateLimiterService) CheckLimit(ctx context.Context, ip string) (*RateLimitResult, error) {
	if !s.config.Enabled {
		return &RateLimitResult{Allowed: true, Remaining: math.MaxInt, Limit: math.MaxInt}, nil
	}

	client := s.redis.GetClient()
	limit := s.config.PerMinute

	banKey := redis.GenerateKey(redis.KeyPrefixRateLimit, "ban:"+ip)
	if ttl, err := client.TTL(ctx, banKey).Result(); err == nil && ttl > 0 {
		return &RateLimitResult{
			Allowed:     false,
			Limit:       limit,
			BannedUntil: time.Now().Add(ttl),
			RetryAfter:  int(math.Ceil(ttl.Seconds())),
		}, nil
	}

	key := redis.GenerateKey(redis.KeyPrefixRateLimit, "ip:"+ip)
	result, err := client.Eval(ctx, rateLimitLuaScript, []string{key}, limit, rateLimitWindow).Result()
	if err != nil {
		s.log.WithError(err).WithField("ip", ip).Error("Rate limit script failed")
		return &RateLimitResult{Allowed: true, Remaining: limit, Limit: limit}, nil
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		s.log.WithField("ip", ip).Error(fmt.Sprintf("Unexpected rate limit script result: %v", result))
		return &RateLimitResult{Allowed: true, Remaining: limit, Limit: limit}, nil
	}

	allowed := values[0].(int64) == 1
	current := int(values[1].(int64))

	if !allowed {
		ban := time.Duration(s.config.BanDuration) * time.Second
		if err := client.Set(ctx, banKey, "1", ban).Err(); err != nil {
			s.log.WithError(err).WithField("ip", ip).Error("Failed to store ban")
		}

		s.log.WithFields(logrus.Fields{
			"ip":           ip,
			"count":        current,
			"limit":        limit,
			"ban_duration": s.config.BanDuration,
		}).Warn("Rate limit exceeded, address banned")

		return &RateLimitResult{
			Allowed:     false,
			Limit:       limit,
			BannedUntil: time.Now().Add(ban),
			RetryAfter:  s.config.BanDuration,
		}, nil
	}

	ttl, _ := client.TTL(ctx, key).Result()
	return &RateLimitResult{
		Allowed:   true,
		Remaining: limit - current,
		Limit:     limit,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// ResetLimit снимает счетчик и бан с адреса
func (s *RateLimiterService) ResetLimit(ctx context.Context, ip string) error {
	err := s.redis.Delete(ctx,
		redis.GenerateKey(redis.KeyPrefixRateLimit, "ip:"+ip),
		redis.GenerateKey(redis.KeyPrefixRateLimit, "ban:"+ip),
	)
	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}

	s.log.WithField("ip", ip).Info("Rate limit reset")
	return nil
}
