package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/config"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/auth"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/ratelimit"
)

const maxRequestSize = 1 << 20 // 1MB

// RequestID adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// RequestSizeLimit limits the size of incoming request bodies
func RequestSizeLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestSize)
		c.Next()
	}
}

// Logger logs HTTP requests with structured logging
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		logger.Info("http request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("response_size", c.Writer.Size()),
		)
	}
}

// Recovery handles panics and returns 500 errors
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("request_id", c.GetString("request_id")),
					zap.String("path", c.Request.URL.Path),
					zap.String("stack", string(debug.Stack())),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": c.GetString("request_id"),
				})
			}
		}()
		c.Next()
	}
}

// CORS handles Cross-Origin Resource Sharing
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}
		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// SecurityHeaders adds security headers to responses
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// Authentication validates bearer tokens and loads the caller identity
func Authentication(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "authorization header required",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "invalid authorization format",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		claims, err := auth.ValidateToken(tokenParts[1], cfg.Secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "invalid token",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Set("kyc_verified", claims.KYCVerified)
		c.Next()
	}
}

// RequireKYC gates withdrawal surfaces on identity verification. The
// identity platform attests verification in the token; this engine does
// not hold user records.
func RequireKYC() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("kyc_verified") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":       "KYC_REQUIRED",
				"error":      "identity verification required for withdrawals",
				"request_id": c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}

// AdminOnly gates a route group to admin tokens
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("user_role")
		if role != "admin" && role != "operator" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":      "admin access required",
				"request_id": c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}

// RateLimit enforces per-IP and per-user request ceilings backed by redis.
// The limiter fails open so a cache outage does not take the API down.
func RateLimit(limiter *ratelimit.RedisLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""
		if id, exists := c.Get("user_id"); exists {
			if uid, ok := id.(uuid.UUID); ok {
				userID = uid.String()
			}
		}

		result, err := limiter.Check(c.Request.Context(), c.ClientIP(), userID)
		if err == nil && !result.Allowed {
			c.Header("Retry-After", result.RetryAfter.Truncate(time.Second).String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"limited_by": result.LimitedBy,
				"request_id": c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}
