package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/queue"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// ScopeFunc names the group a cached response belongs to.  An empty scope
// disables caching for the request.
type ScopeFunc func(c echo.Context) string

// ScopeByParam scopes responses by a path parameter, such as a resource id.
func ScopeByParam(name string) ScopeFunc {
	return func(c echo.Context) string { return c.Param(name) }
}

// ResponseCache stores successful responses in Redis, headers included, so
// clients see byte-identical output on a hit.  Every entry is indexed
// under its scope so Invalidate can drop a whole scope at once.
type ResponseCache struct {
	cfg    config.CacheConfig
	rdb    *redis.Client
	logger *zap.Logger
}

// NewResponseCache returns a cache.  A nil client or disabled config makes
// Middleware a pass-through and Invalidate a no-op.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, logger *zap.Logger) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "cache"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, logger: logger}
}

func (rc *ResponseCache) active() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) indexKey(scope string) string {
	return rc.cfg.Prefix + ":idx:" + scope
}

func (rc *ResponseCache) entryKey(scope string, c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + c.Path() + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", rc.cfg.Prefix, scope, sum[:])
}

// Middleware caches responses of the configured methods under scope.
func (rc *ResponseCache) Middleware(scope ScopeFunc) echo.MiddlewareFunc {
	if !rc.active() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			sc := scope(c)
			if sc == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			key := rc.entryKey(sc, c)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (cw.limit > 0 && cw.size > cw.limit) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			// Store outside the request context so a disconnecting client
			// does not abort the write.
			bg, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			pipe := rc.rdb.TxPipeline()
			pipe.Set(bg, key, payload, rc.cfg.TTL)
			pipe.SAdd(bg, rc.indexKey(sc), key)
			pipe.Expire(bg, rc.indexKey(sc), rc.cfg.TTL)
			if _, err := pipe.Exec(bg); err != nil {
				rc.logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// Invalidate drops every cached response under scope.
func (rc *ResponseCache) Invalidate(ctx context.Context, scope string) error {
	if !rc.active() || scope == "" {
		return nil
	}
	idx := rc.indexKey(scope)
	keys, err := rc.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}
	return rc.rdb.Del(ctx, append(keys, idx)...).Err()
}

// OnReservationChanged is a queue.Handler that drops the cached responses
// of the resource a reservation event concerns.
func (rc *ResponseCache) OnReservationChanged(ctx context.Context, ev queue.ReservationChanged) {
	if err := rc.Invalidate(ctx, ev.ResourceID); err != nil {
		rc.logger.Warn("cache invalidation failed", zap.String("resource_id", ev.ResourceID), zap.Error(err))
	}
}
