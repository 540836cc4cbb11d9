package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/finlearn/finlearn-backend/internal/domain"
	"github.com/finlearn/finlearn-backend/internal/platform/envutil"
	"github.com/finlearn/finlearn-backend/internal/platform/errs"
	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

// Memory persists per-learner context between sessions.
type Memory interface {
	GetContext(ctx context.Context, learnerID string) (domain.LearnerContext, error)
	SaveContext(ctx context.Context, lc domain.LearnerContext) error
	// RecordInteraction folds one interaction into the stored context and
	// returns the updated state.
	RecordInteraction(ctx context.Context, learnerID string, in domain.Interaction) (domain.LearnerContext, error)
	Close() error
}

// kvStore is the key-value slice of redis the memory needs; Get returns
// found=false for missing keys.
type kvStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

type redisMemory struct {
	kv  kvStore
	ttl time.Duration
	log *logger.Logger
}

// NewMemory connects to redis using REDIS_ADDR and verifies the connection
// before returning.
func NewMemory(log *logger.Logger) (Memory, error) {
	addr := strings.TrimSpace(envutil.Str("REDIS_ADDR", ""))
	if addr == "" {
		return nil, errs.Validation("missing REDIS_ADDR", nil)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.Str("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.Storage("redis ping", err)
	}

	return &redisMemory{
		kv:  redisKV{rdb: rdb},
		ttl: envutil.Duration("LEARNER_CONTEXT_TTL", 0),
		log: log.With("service", "learner_memory"),
	}, nil
}

func newMemoryWithStore(kv kvStore, ttl time.Duration, log *logger.Logger) Memory {
	return &redisMemory{kv: kv, ttl: ttl, log: log.With("service", "learner_memory")}
}

func contextKey(learnerID string) string {
	return fmt.Sprintf("learner:%s:context", learnerID)
}

// GetContext returns the stored context, or a fresh default when the learner
// is unknown or the stored value fails to decode.
func (m *redisMemory) GetContext(ctx context.Context, learnerID string) (domain.LearnerContext, error) {
	if strings.TrimSpace(learnerID) == "" {
		return domain.LearnerContext{}, errs.Validation("learner id is empty", nil)
	}

	raw, found, err := m.kv.Get(ctx, contextKey(learnerID))
	if err != nil {
		return domain.LearnerContext{}, errs.Storage("read learner context", err)
	}
	if !found {
		return domain.DefaultLearnerContext(learnerID), nil
	}

	var lc domain.LearnerContext
	if err := json.Unmarshal([]byte(raw), &lc); err != nil {
		m.log.Warn("corrupt learner context, resetting", "learner_id", learnerID, "error", err)
		return domain.DefaultLearnerContext(learnerID), nil
	}
	if lc.LearnerID == "" {
		lc.LearnerID = learnerID
	}
	return lc, nil
}

func (m *redisMemory) SaveContext(ctx context.Context, lc domain.LearnerContext) error {
	if strings.TrimSpace(lc.LearnerID) == "" {
		return errs.Validation("learner id is empty", nil)
	}
	raw, err := json.Marshal(lc)
	if err != nil {
		return errs.Storage("encode learner context", err)
	}
	if err := m.kv.Set(ctx, contextKey(lc.LearnerID), string(raw), m.ttl); err != nil {
		return errs.Storage("write learner context", err)
	}
	return nil
}

func (m *redisMemory) RecordInteraction(ctx context.Context, learnerID string, in domain.Interaction) (domain.LearnerContext, error) {
	lc, err := m.GetContext(ctx, learnerID)
	if err != nil {
		return domain.LearnerContext{}, err
	}
	lc.Apply(in)
	if err := m.SaveContext(ctx, lc); err != nil {
		return domain.LearnerContext{}, err
	}
	return lc, nil
}

func (m *redisMemory) Close() error { return m.kv.Close() }

// redisKV adapts go-redis to the kvStore seam.
type redisKV struct {
	rdb *goredis.Client
}

func (r redisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r redisKV) Close() error { return r.rdb.Close() }
