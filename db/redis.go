package db

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/model"
)

var (
	RedisClient   *redis.Client
	encryptionKey []byte
)

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	encryptionKey = []byte(viper.GetString("redis.encryptionKey"))
	if len(encryptionKey) != 32 {
		return fmt.Errorf("invalid encryption key length: must be 32 bytes")
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// CacheDecision stores an access decision encrypted, keyed by the request
// fingerprint. Decisions carry context, so they are treated as sensitive.
func CacheDecision(ctx context.Context, fingerprint string, decision *model.AccessDecision) error {
	if RedisClient == nil {
		return nil
	}
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	encryptedDecision, err := encrypt(decisionJSON)
	if err != nil {
		return fmt.Errorf("failed to encrypt decision: %w", err)
	}

	key := fmt.Sprintf("decision:%s", fingerprint)
	defaultTTL := viper.GetDuration("redis.defaultCacheTTL")
	err = RedisClient.Set(ctx, key, base64.StdEncoding.EncodeToString(encryptedDecision), defaultTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache decision: %w", err)
	}

	logger.Debug("Decision cached successfully", zap.String("fingerprint", fingerprint))
	return nil
}

func GetCachedDecision(ctx context.Context, fingerprint string) (*model.AccessDecision, error) {
	if RedisClient == nil {
		return nil, nil
	}
	key := fmt.Sprintf("decision:%s", fingerprint)
	encryptedDecisionStr, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get decision from cache: %w", err)
	}

	encryptedDecision, err := base64.StdEncoding.DecodeString(encryptedDecisionStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode decision: %w", err)
	}

	decisionJSON, err := decrypt(encryptedDecision)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt decision: %w", err)
	}

	var decision model.AccessDecision
	err = json.Unmarshal(decisionJSON, &decision)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
	}

	return &decision, nil
}

// InvalidateDecisions clears every cached decision; called when a new policy
// snapshot is published.
func InvalidateDecisions(ctx context.Context) error {
	if RedisClient == nil {
		return nil
	}
	iter := RedisClient.Scan(ctx, 0, "decision:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := RedisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate cached decision: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached decisions: %w", err)
	}
	logger.Debug("Cached decisions invalidated")
	return nil
}

// CacheDashboard stores the dashboard snapshot with a short TTL.
func CacheDashboard(ctx context.Context, payload interface{}) error {
	if RedisClient == nil {
		return nil
	}
	dashboardJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard: %w", err)
	}
	err = RedisClient.Set(ctx, "dashboard:current", dashboardJSON, 5*time.Second).Err()
	if err != nil {
		return fmt.Errorf("failed to cache dashboard: %w", err)
	}
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	if RedisClient == nil {
		return true, nil
	}
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
