package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter es el contrato mínimo que consume el servicio.
type Limiter interface {
	Check(identity string) (bool, string)
	Record(identity string)
}

const redisQuotaIncrScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// RedisLayeredTracker agrega una capa compartida entre instancias sobre el
// tracker en memoria. Ante un error de Redis la capa distribuida cede y
// decide solo la local (fail-open, como el resto de límites best-effort).
type RedisLayeredTracker struct {
	local  *Tracker
	client *redis.Client
	prefix string
}

func NewRedisLayeredTracker(client *redis.Client, local *Tracker) *RedisLayeredTracker {
	if local == nil {
		local = NewTracker()
	}
	return &RedisLayeredTracker{
		local:  local,
		client: client,
		prefix: "llm:quota:",
	}
}

func (t *RedisLayeredTracker) Check(identity string) (bool, string) {
	if ok, reason := t.local.Check(identity); !ok {
		return false, reason
	}
	if t.client == nil {
		return true, ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	id := strings.ToLower(strings.TrimSpace(identity))
	hourly, err := t.client.Get(ctx, t.prefix+"h:"+id).Int()
	if err == nil && hourly >= t.local.hourlyLimit {
		return false, fmt.Sprintf("Hourly limit of %d generations exceeded. Try again later.", t.local.hourlyLimit)
	}
	daily, err := t.client.Get(ctx, t.prefix+"d:"+id).Int()
	if err == nil && daily >= t.local.dailyLimit {
		return false, fmt.Sprintf("Daily limit of %d generations exceeded. Try again tomorrow.", t.local.dailyLimit)
	}
	return true, ""
}

func (t *RedisLayeredTracker) Record(identity string) {
	t.local.Record(identity)
	if t.client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	id := strings.ToLower(strings.TrimSpace(identity))
	_ = t.client.Eval(ctx, redisQuotaIncrScript, []string{t.prefix + "h:" + id}, 3600).Err()
	_ = t.client.Eval(ctx, redisQuotaIncrScript, []string{t.prefix + "d:" + id}, 86400).Err()
}
