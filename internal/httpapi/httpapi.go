package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"lojafacil/backend/internal/service"
	"lojafacil/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	location      *time.Location
	loginLimiter  *attemptLimiter
	logger        *zap.Logger
}

// New wires the HTTP surface. loc is the fallback timezone for report
// windows when a request does not name one.
func New(svc *service.Service, auth *AuthManager, allowedOrigin string, loc *time.Location, logger *zap.Logger) *API {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: strings.TrimSpace(allowedOrigin),
		location:      loc,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		logger:        logger.Named("httpapi"),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

// clientKey uses the socket peer only; forwarded headers are not trusted.
func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(a.recovery(), a.securityHeaders(), a.corsMiddleware(), limitBody(), a.requestLog())

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, errors.New("route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		writeError(c, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	r.GET("/healthz", a.handleHealth)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/register", a.handleRegister)
	v1.POST("/auth/login", a.handleLogin)

	authed := v1.Group("")
	authed.Use(a.requireAuth())
	{
		authed.GET("/me", a.handleMe)

		authed.GET("/products", a.handleListProducts)
		authed.POST("/products", a.handleCreateProduct)
		authed.GET("/products/:id", a.handleGetProduct)
		authed.PATCH("/products/:id", a.handleUpdateProduct)
		authed.DELETE("/products/:id", a.handleDeleteProduct)
		authed.GET("/products/:id/stock-entries", a.handleProductStockEntries)
		authed.GET("/products/:id/sales", a.handleProductSales)

		authed.GET("/stock-entries", a.handleListStockEntries)
		authed.POST("/stock-entries", a.handleRecordStockEntry)

		authed.GET("/sales", a.handleListSales)
		authed.POST("/sales", a.handleRecordSale)
		authed.GET("/sales/stats", a.handleSalesStats)

		authed.GET("/reports/payment-methods", a.handlePaymentMethodReport)
		authed.GET("/reports/products", a.handleProductPerformanceReport)
		authed.GET("/reports/period", a.handlePeriodReport)
		authed.GET("/reports/stock", a.handleStockReport)
		authed.GET("/reports/stock/drift", a.handleStockDrift)

		authed.GET("/dashboard/overview", a.handleOverview)
	}

	return r
}

func (a *API) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(c, http.StatusUnauthorized, errors.New("missing bearer token"))
			c.Abort()
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (a *API) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		c.Next()
	}
}

func (a *API) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Timezone"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if a.allowedOrigin == "" || a.allowedOrigin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(a.allowedOrigin, ",")
		for i := range cfg.AllowOrigins {
			cfg.AllowOrigins[i] = strings.TrimSpace(cfg.AllowOrigins[i])
		}
	}
	return cors.New(cfg)
}

func limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		}
		c.Next()
	}
}

func (a *API) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		a.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(startedAt)))
	}
}

func (a *API) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		a.logger.Error("panic while serving request",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered))
		writeError(c, http.StatusInternalServerError, fmt.Errorf("panic: %v", recovered))
		c.Abort()
	})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrInsufficientStock):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("internal error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	writeError(c, status, err)
}

// decodeJSON rejects unknown fields and trailing data.
func decodeJSON(c *gin.Context, dest any) error {
	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", store.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", store.ErrInvalidInput)
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// requestLocation picks the report timezone: ?tz=, then X-Timezone, then the
// server default.
func (a *API) requestLocation(c *gin.Context) (*time.Location, error) {
	name := strings.TrimSpace(c.Query("tz"))
	if name == "" {
		name = strings.TrimSpace(c.GetHeader("X-Timezone"))
	}
	if name == "" {
		return a.location, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", store.ErrInvalidInput, name)
	}
	return loc, nil
}

func wantsCSV(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.Query("format")), "csv")
}

func (a *API) writeCSV(c *gin.Context, filename string, rows any) {
	payload, err := gocsv.MarshalBytes(rows)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", payload)
}

// writeError hides 5xx details from clients; 4xx messages are user-facing.
func writeError(c *gin.Context, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func writeJSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}
