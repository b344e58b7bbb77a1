package rate

import (
	"context"
	"strconv"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// hitScript cuenta un hit en la ventana y retorna {hits, pttl}. La
// expiración se fija sólo en el primer hit, así la ventana no se corre.
var hitScript = rdb.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter es una ventana fija compartida: todas las réplicas cuentan
// sobre la misma key <prefix><policy>:<key>:<inicio de ventana>.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	policy Policy
	now    func() time.Time
}

func NewRedisLimiter(client *rdb.Client, prefix string, p Policy) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, policy: p, now: time.Now}
}

func (l *RedisLimiter) windowKey(key string, now time.Time) string {
	var b strings.Builder
	b.WriteString(l.prefix)
	b.WriteString(strconv.Itoa(l.policy.Max))
	b.WriteByte('/')
	b.WriteString(l.policy.Window.String())
	b.WriteByte(':')
	b.WriteString(strings.ReplaceAll(key, " ", "_"))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(now.Truncate(l.policy.Window).Unix(), 10))
	return b.String()
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	window := l.policy.Window
	vals, err := hitScript.Run(ctx, l.client, []string{l.windowKey(key, l.now().UTC())}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	hits, reset := vals[0], time.Duration(vals[1])*time.Millisecond
	if reset <= 0 {
		reset = window
	}

	limit := int64(l.policy.Max)
	res := Result{Allowed: hits <= limit, Limit: limit, ResetIn: reset}
	if res.Allowed {
		res.Remaining = limit - hits
	} else {
		res.RetryAfter = reset
	}
	return res, nil
}
