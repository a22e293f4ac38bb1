// Package ingest is the HTTP surface: subscription management, event intake,
// and delivery status queries. Intake validates and enqueues only; all
// delivery work happens asynchronously in the worker.
package ingest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wharfhook/wharfhook/internal/audit"
	"github.com/wharfhook/wharfhook/internal/logging"
	"github.com/wharfhook/wharfhook/internal/metrics"
	"github.com/wharfhook/wharfhook/internal/signature"
	"github.com/wharfhook/wharfhook/internal/subscription"
	"github.com/wharfhook/wharfhook/internal/tracing"
)

// SubscriptionManager is the mutable subscription surface backing the CRUD
// handlers. Satisfied by *subscription.Store.
type SubscriptionManager interface {
	Get(ctx context.Context, id int64) (subscription.Subscription, error)
	Create(ctx context.Context, targetURL, secret, eventType string) (subscription.Subscription, error)
	Update(ctx context.Context, id int64, targetURL, secret, eventType string) (subscription.Subscription, error)
	Delete(ctx context.Context, id int64) error
}

// Resolver is the cached lookup the intake path uses. Satisfied by
// *subscription.Cache.
type Resolver interface {
	Resolve(ctx context.Context, id int64) (subscription.Subscription, error)
}

// Enqueuer admits a validated event to the delivery queue. Satisfied by
// *delivery.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, subscriptionID int64, payload map[string]any, eventType string) (string, error)
}

// AuditReader serves the status query surface. Satisfied by *audit.Store.
type AuditReader interface {
	LatestByTask(ctx context.Context, taskID string) (audit.Record, error)
	RecentBySubscription(ctx context.Context, subscriptionID int64, limit int) ([]audit.Record, error)
}

// Service wires the HTTP handlers to their collaborators.
type Service struct {
	subs     SubscriptionManager
	resolver Resolver
	queue    Enqueuer
	auditLog AuditReader
	logger   *logging.Logger
}

func NewService(subs SubscriptionManager, resolver Resolver, queue Enqueuer, auditLog AuditReader, logger *logging.Logger) *Service {
	return &Service{
		subs:     subs,
		resolver: resolver,
		queue:    queue,
		auditLog: auditLog,
		logger:   logger,
	}
}

// Register mounts all routes on r. authMW may be nil; when present it guards
// the subscription management routes only; intake stays open because inbound
// events authenticate via their HMAC signature instead.
func (s *Service) Register(r *gin.Engine, authMW gin.HandlerFunc) {
	subs := r.Group("/subscriptions")
	if authMW != nil {
		subs.Use(authMW)
	}
	subs.POST("", s.createSubscription)
	subs.GET("/:id", s.getSubscription)
	subs.PUT("/:id", s.updateSubscription)
	subs.DELETE("/:id", s.deleteSubscription)

	r.POST("/ingest/:id", s.ingestEvent)
	r.GET("/status/:taskID", s.deliveryStatus)
	r.GET("/subscriptions/:id/deliveries", s.deliveryHistory)
}

type subscriptionRequest struct {
	TargetURL string `json:"target_url"`
	Secret    string `json:"secret"`
	EventType string `json:"event_type"`
}

func (s *Service) createSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if req.TargetURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "target_url is required"})
		return
	}

	sub, err := s.subs.Create(c.Request.Context(), req.TargetURL, req.Secret, req.EventType)
	if err != nil {
		s.logger.WithContext(c.Request.Context()).WithError(err).Error("create subscription failed")
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Service) getSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	sub, err := s.subs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Subscription not found"})
			return
		}
		s.logger.WithContext(c.Request.Context()).WithError(err).Error("get subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Service) updateSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	sub, err := s.subs.Update(c.Request.Context(), id, req.TargetURL, req.Secret, req.EventType)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Subscription not found"})
			return
		}
		s.logger.WithContext(c.Request.Context()).WithError(err).Error("update subscription failed")
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Service) deleteSubscription(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.subs.Delete(c.Request.Context(), id); err != nil {
		s.logger.WithContext(c.Request.Context()).WithError(err).Error("delete subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscription deleted"})
}

// ingestEvent validates an inbound event and queues it for delivery. A
// rejected event never produces a task or an audit record.
func (s *Service) ingestEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, span := tracing.StartSpan(c.Request.Context(), "ingest.event",
		attribute.Int64("subscription_id", id),
	)
	defer span.End()

	sub, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			metrics.RecordEventRejected("unknown_subscription")
			c.JSON(http.StatusNotFound, gin.H{"detail": "Subscription not found"})
			return
		}
		tracing.SetSpanError(ctx, err)
		s.logger.WithContext(ctx).WithSubscription(id).WithError(err).Error("resolve subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid JSON payload"})
		return
	}

	if err := signature.Verify(sub.Secret, payload); err != nil {
		switch {
		case errors.Is(err, signature.ErrMissingSignature):
			metrics.RecordEventRejected("missing_signature")
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing signature in payload"})
		case errors.Is(err, signature.ErrMissingBody):
			metrics.RecordEventRejected("missing_body")
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing body in payload"})
		default:
			metrics.RecordEventRejected("invalid_signature")
			c.JSON(http.StatusForbidden, gin.H{"detail": "Invalid signature"})
		}
		return
	}

	eventType := c.Query("event_type")
	if !sub.AcceptsEventType(eventType) {
		metrics.RecordEventRejected("event_type_mismatch")
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Event type mismatch"})
		return
	}

	taskID, err := s.queue.Enqueue(ctx, id, payload, eventType)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		s.logger.WithContext(ctx).WithSubscription(id).WithError(err).Error("enqueue failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to queue delivery"})
		return
	}

	metrics.RecordEventIngested()
	span.SetAttributes(attribute.String("task_id", taskID))
	s.logger.WithContext(ctx).WithTask(taskID).WithSubscription(id).Info("event queued for delivery")
	c.JSON(http.StatusAccepted, gin.H{"message": "Event queued for delivery", "task_id": taskID})
}

func (s *Service) deliveryStatus(c *gin.Context) {
	taskID := c.Param("taskID")

	rec, err := s.auditLog.LatestByTask(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, audit.ErrNoRecords) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Task not found"})
			return
		}
		s.logger.WithContext(c.Request.Context()).WithTask(taskID).WithError(err).Error("status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Service) deliveryHistory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit := audit.MaxRecentRecords
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := s.auditLog.RecentBySubscription(ctx, id, limit)
	if err != nil {
		s.logger.WithContext(ctx).WithSubscription(id).WithError(err).Error("history lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid subscription id"})
		return 0, false
	}
	return id, true
}
