package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	// inFlightTTL bounds how long a crashed request can hold its key.
	inFlightTTL    = 30 * time.Second
	inFlightMarker = "in-flight"
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
	Headers    http.Header     `json:"headers"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated Idempotency-Key
// and rejects a repeat that arrives while the first request is still running.
// Keys are scoped to the caller, method and path. Redis errors disable replay
// for the request rather than failing it.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		cacheKey := idempotencyCacheKey(c, key)

		claimed, err := redisClient.SetNX(ctx, cacheKey, inFlightMarker, inFlightTTL).Result()
		if err != nil {
			log.Printf("[IDEMPOTENCY] redis unavailable, processing %s without replay: %v", cacheKey, err)
			c.Next()
			return
		}

		if !claimed {
			replay(c, redisClient, cacheKey)
			return
		}

		w := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
		}
		c.Writer = w

		c.Next()

		// Server errors and busy responses are retryable, so the key is freed.
		status := c.Writer.Status()
		storeCtx := context.WithoutCancel(ctx)
		if status >= 200 && status < 500 {
			response := cachedResponse{
				StatusCode: status,
				Body:       w.body.Bytes(),
				Headers:    extractResponseHeaders(c),
			}
			if err := setCachedResponse(storeCtx, redisClient, cacheKey, &response, idempotencyTTL); err != nil {
				log.Printf("[IDEMPOTENCY] store %s failed: %v", cacheKey, err)
			}
			return
		}
		_ = redisClient.Del(storeCtx, cacheKey).Err()
	}
}

// replay writes the stored response, or 409 while the original is in flight.
func replay(c *gin.Context, client *redis.Client, cacheKey string) {
	cached, err := getCachedResponse(c.Request.Context(), client, cacheKey)
	if err != nil {
		if errors.Is(err, errInFlight) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is already in progress"})
			return
		}
		log.Printf("[IDEMPOTENCY] read %s failed: %v", cacheKey, err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "could not read idempotent response, try again"})
		return
	}

	for k, v := range cached.Headers {
		for _, val := range v {
			c.Header(k, val)
		}
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(cached.StatusCode, "application/json", cached.Body)
	c.Abort()
}

var errInFlight = errors.New("idempotent request in flight")

// idempotencyCacheKey scopes the client key to the caller and route.
func idempotencyCacheKey(c *gin.Context, key string) string {
	caller := "anonymous"
	if identity, ok := CurrentIdentity(c); ok {
		caller = identity.UserID
	}
	return "idempotency:" + caller + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}

// getCachedResponse retrieves a cached response from Redis.
func getCachedResponse(ctx context.Context, client *redis.Client, key string) (*cachedResponse, error) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errInFlight
		}
		return nil, err
	}

	if string(data) == inFlightMarker {
		return nil, errInFlight
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &cached, nil
}

// setCachedResponse stores a response in Redis.
func setCachedResponse(ctx context.Context, client *redis.Client, key string, response *cachedResponse, ttl time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// extractResponseHeaders extracts headers to cache.
func extractResponseHeaders(c *gin.Context) http.Header {
	headers := make(http.Header)
	if ct := c.Writer.Header().Get("Content-Type"); ct != "" {
		headers.Set("Content-Type", ct)
	}
	return headers
}
