package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memory tracks active calls within one process.
type Memory struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{active: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, callID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[callID]; ok {
		return false, nil
	}
	m.active[callID] = struct{}{}
	return true, nil
}

func (m *Memory) Release(_ context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, callID)
	return nil
}

// DefaultLease is used when NewRedis gets a non-positive ttl.
const DefaultLease = time.Minute

// Only the owner of a registration may delete or extend it.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Redis tracks active calls across instances. A registration is a lease of
// ttl renewed while the call is live, so a crashed instance releases its
// calls within one lease and a long call never loses its registration.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]*lease
}

type lease struct {
	token string
	stop  context.CancelFunc
	done  chan struct{}
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultLease
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		owner:  uuid.New().String(),
		logger: logger,
		leases: make(map[string]*lease),
	}
}

func (r *Redis) Acquire(ctx context.Context, callID string) (bool, error) {
	token := r.owner + ":" + uuid.New().String()

	ok, err := r.client.SetNX(ctx, key(callID), token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("registering call %s: %w", callID, err)
	}
	if !ok {
		return false, nil
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	l := &lease{token: token, stop: stop, done: make(chan struct{})}
	go r.renew(renewCtx, callID, l)

	r.mu.Lock()
	r.leases[callID] = l
	r.mu.Unlock()
	return true, nil
}

// renew extends the lease at a third of its ttl until the call is released.
func (r *Redis) renew(ctx context.Context, callID string, l *lease) {
	defer close(l.done)

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := renewScript.Run(ctx, r.client, []string{key(callID)}, l.token, r.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("renewing call registration", zap.String("callSid", callID), zap.Error(err))
				}
				continue
			}
			if extended == 0 {
				r.logger.Warn("call registration lost", zap.String("callSid", callID))
				return
			}
		}
	}
}

func (r *Redis) Release(ctx context.Context, callID string) error {
	r.mu.Lock()
	l, ok := r.leases[callID]
	delete(r.leases, callID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	l.stop()
	<-l.done

	if err := releaseScript.Run(ctx, r.client, []string{key(callID)}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("releasing call %s: %w", callID, err)
	}
	return nil
}

func key(callID string) string {
	return "pizzacall:call:" + callID
}
