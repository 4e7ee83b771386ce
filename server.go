package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/gulfstream-dynamics/crm_backend/config"
	"github.com/gulfstream-dynamics/crm_backend/controllers"
	"github.com/gulfstream-dynamics/crm_backend/middlewares"
	"github.com/gulfstream-dynamics/crm_backend/models"
	"github.com/gulfstream-dynamics/crm_backend/notifier"
	"github.com/gulfstream-dynamics/crm_backend/utils"
	"github.com/gulfstream-dynamics/crm_backend/workflow"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PaymentNotificationMessage is the inbound payload from the payments
// provider's push subscription.
type PaymentNotificationMessage struct {
	CompanyId     string            `json:"company_id"`
	OrderId       int               `json:"order_id"`
	Payment       models.NewPayment `json:"payment"`
	CorrelationId string            `json:"correlation_id"`
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// paymentPubSubHandler records payments pushed by the payments provider.
// Idempotent on the Pub/Sub message id; a duplicate delivery after success is
// acked without re-applying.
func paymentPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		// Redis lock is a best-effort optimization. Reliability must not
		// depend on Redis: Apply() also serializes via MySQL advisory locks.
		redisLock := config.GetRedisLock()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "paymentPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "paymentPubSubHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var m PaymentNotificationMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(logger, "server.go", "paymentPubSubHandler", "Unmarshal pubsub message", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if m.CompanyId == "" || m.OrderId <= 0 {
			config.LogError(logger, "server.go", "paymentPubSubHandler", "Invalid pubsub message (missing required fields)", m, fmt.Errorf("company_id/order_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}

		// Best-effort: obtain a per-order lock to avoid long in-request
		// blocking. If Redis is unavailable, continue; Apply() serializes
		// safely on its own.
		var lock *redislock.Lock
		if redisLock == nil {
			logger.WithFields(logrus.Fields{
				"field":      "paymentPubSubHandler",
				"company_id": m.CompanyId,
				"order_id":   m.OrderId,
				"message_id": msg.Message.ID,
			}).Warn("redis lock not ready; proceeding without redis lock")
		} else {
			lock, err = redisLock.Obtain(c.Request.Context(), fmt.Sprintf("lock:order:%s:%d", m.CompanyId, m.OrderId), 30*time.Second, nil)
			if err == redislock.ErrNotObtained {
				logger.WithFields(logrus.Fields{
					"field":      "paymentPubSubHandler",
					"company_id": m.CompanyId,
					"order_id":   m.OrderId,
					"message_id": msg.Message.ID,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
				lock = nil
			} else if err != nil {
				logger.WithFields(logrus.Fields{
					"field":      "paymentPubSubHandler",
					"company_id": m.CompanyId,
					"order_id":   m.OrderId,
					"message_id": msg.Message.ID,
				}).Warn("error obtaining redis lock; proceeding without redis lock: " + err.Error())
				lock = nil
			}
		}
		defer func() {
			if lock == nil {
				return
			}
			if releaseErr := lock.Release(c.Request.Context()); releaseErr != nil {
				logger.WithFields(logrus.Fields{
					"field":      "paymentPubSubHandler",
					"company_id": m.CompanyId,
					"order_id":   m.OrderId,
					"message_id": msg.Message.ID,
				}).Warn("failed to release redis lock: " + releaseErr.Error())
			}
		}()

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), m.CompanyId)
		ctx = utils.SetUserNameInContext(ctx, "System")
		ctx = utils.SetActorRoleInContext(ctx, string(models.ActorRoleSystem))
		ctx = utils.SetCorrelationIdInContext(ctx, correlationID)

		if err := processPaymentNotification(ctx, m, msg.Message.ID); err != nil {
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				// Another worker holds this message; let the broker retry.
				c.Status(http.StatusConflict)
				return
			}
			logger.WithFields(logrus.Fields{
				"field":          "paymentPubSubHandler",
				"company_id":     m.CompanyId,
				"order_id":       m.OrderId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}

		// Success: ack.
		c.Status(http.StatusNoContent)
	}
}

const paymentNotificationHandlerName = "payment-notification"

func processPaymentNotification(ctx context.Context, m PaymentNotificationMessage, messageID string) error {
	db := config.GetDB()
	if db == nil {
		return errors.New("db is nil")
	}

	idemTx := db.WithContext(ctx).Begin()
	skip, err := workflow.BeginIdempotency(idemTx, m.CompanyId, paymentNotificationHandlerName, messageID)
	if err != nil {
		idemTx.Rollback()
		return err
	}
	if err := idemTx.Commit().Error; err != nil {
		return err
	}
	if skip {
		return nil
	}

	_, _, applyErr := workflow.RecordPayment(ctx, m.OrderId, &m.Payment)
	// A duplicate transition attempt on an order that already advanced is a
	// successful no-op from the broker's point of view; only infrastructure
	// failures should trigger redelivery.
	var precondition *workflow.PreconditionError
	var terminal *workflow.TerminalStateError
	if applyErr != nil && !errors.As(applyErr, &precondition) && !errors.As(applyErr, &terminal) {
		_ = workflow.MarkIdempotencyFailed(db.WithContext(ctx), m.CompanyId, paymentNotificationHandlerName, messageID, applyErr)
		return applyErr
	}
	return workflow.MarkIdempotencySucceeded(db.WithContext(ctx), m.CompanyId, paymentNotificationHandlerName, messageID)
}

type outboxReplayRequest struct {
	Ids []int `json:"ids"`
}

// Ops tooling (owner only): requeue outbox rows that went DEAD.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middlewares.CtxValue(c.Request.Context())
		if claims == nil || claims.Role != string(models.UserRoleOwner) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		replayed, err := workflow.ReplayDeadEvents(c.Request.Context(), db, claims.CompanyId, req.Ids)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"company_id": claims.CompanyId,
			"replayed":   replayed,
		})
	}
}

// companyEventsSocketHandler subscribes a staff connection to the company
// room.
func companyEventsSocketHandler(hub *notifier.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middlewares.CtxValue(c.Request.Context())
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := hub.ServeRoom(c.Writer, c.Request, notifier.CompanyRoom(claims.CompanyId)); err != nil {
			config.LogError(config.GetLogger(), "server.go", "companyEventsSocketHandler", "upgrade", nil, err)
		}
	}
}

// portalEventsSocketHandler subscribes a tracking-token connection to the
// client room.
func portalEventsSocketHandler(hub *notifier.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := models.GetOrderByToken(c.Request.Context(), c.Param("token"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if err := hub.ServeRoom(c.Writer, c.Request, notifier.ClientRoom(order.ClientId)); err != nil {
			config.LogError(config.GetLogger(), "server.go", "portalEventsSocketHandler", "upgrade", nil, err)
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	hub := notifier.NewHub(logger)

	r.POST("/auth/signin", controllers.SignIn)
	r.POST("/auth/register", controllers.RegisterCompany)

	admin := r.Group("/", middlewares.RequireStaff())
	{
		admin.POST("/users", controllers.CreateUser)

		admin.POST("/clients", controllers.CreateClient)
		admin.GET("/clients", controllers.GetClients)
		admin.GET("/clients/:id", controllers.GetClient)

		admin.POST("/orders", controllers.CreateOrder)
		admin.GET("/orders", controllers.GetOrders)
		admin.GET("/orders/:id", controllers.GetOrder)
		admin.GET("/orders/:id/history", controllers.GetOrderHistory)
		admin.GET("/orders/:id/payments", controllers.GetPayments)
		admin.POST("/orders/:id/quotations", controllers.UploadQuotation)
		admin.POST("/orders/:id/purchase-order", controllers.CreatePurchaseOrder)
		admin.POST("/orders/:id/payments", controllers.RecordPayment)
		admin.POST("/orders/:id/manufacturing/start", controllers.StartManufacturing)
		admin.POST("/orders/:id/manufacturing/complete", controllers.CompleteManufacturing)
		admin.POST("/orders/:id/delivery-note", controllers.CreateDeliveryNote)
		admin.POST("/orders/:id/close", controllers.CloseOrder)
		admin.POST("/orders/:id/cancel", controllers.CancelOrder)
		admin.POST("/orders/:id/override-stage", controllers.OverrideStage)

		admin.GET("/dashboard/actions", controllers.GetDashboardActions)

		admin.POST("/uploads/sign", controllers.SignDocumentUpload)

		admin.GET("/ws/orders", companyEventsSocketHandler(hub))
	}

	portal := r.Group("/portal")
	{
		portal.GET("/orders/:token", controllers.GetPortalOrder)
		portal.POST("/orders/:token/quotations/:quotationId/accept", controllers.PortalAcceptQuotation)
		portal.POST("/orders/:token/quotations/:quotationId/reject", controllers.PortalRejectQuotation)
		portal.POST("/orders/:token/acknowledgements", controllers.PortalAcknowledgeAction)
		portal.GET("/orders/:token/events", portalEventsSocketHandler(hub))
	}

	r.POST("/pubsub", paymentPubSubHandler())
	// Ops tooling (owner only): replay outbox messages that were marked DEAD.
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler())
	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.Migrate(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Panic(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	dispatcher := workflow.NewOutboxDispatcher(db, logger, hub)
	if strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")) == "" {
		logger.WithFields(logrus.Fields{"field": "dispatcher"}).Warn("PUBSUB_TOPIC not set; outbox events skip the broker")
		dispatcher.PublishDisabled = true
	}
	go dispatcher.Run(dispatcherCtx)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelDispatcher()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP()

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}
