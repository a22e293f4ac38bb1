package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nsqio/go-nsq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wharfhook/wharfhook/internal/audit"
	"github.com/wharfhook/wharfhook/internal/logging"
	"github.com/wharfhook/wharfhook/internal/metrics"
	"github.com/wharfhook/wharfhook/internal/subscription"
	"github.com/wharfhook/wharfhook/internal/tracing"
)

// Resolver yields the delivery configuration for a subscription. Satisfied by
// *subscription.Cache.
type Resolver interface {
	Resolve(ctx context.Context, id int64) (subscription.Subscription, error)
}

// AuditLog records one entry per attempt. Satisfied by *audit.Store.
type AuditLog interface {
	Append(ctx context.Context, rec audit.Record) error
}

// Rescheduler re-submits a task with a delay. Satisfied by *Queue.
type Rescheduler interface {
	Reschedule(ctx context.Context, t Task, delay time.Duration) error
}

// Backoff returns the delay before the attempt following attemptNumber
// becomes eligible: 2^n seconds, so 2s,4s,8s,16s,32s for attempts 1-5.
func Backoff(attemptNumber int) time.Duration {
	return time.Duration(1<<attemptNumber) * time.Second
}

// Worker executes delivery attempts. Each attempt resolves the subscription,
// POSTs the payload, classifies the outcome, appends exactly one audit record,
// and either finishes, reschedules with backoff, or records terminal failure.
type Worker struct {
	resolver   Resolver
	auditLog   AuditLog
	queue      Rescheduler
	client     *http.Client
	maxRetries int
	logger     *logging.Logger
}

// NewWorker builds a Worker. timeout bounds each outbound call; maxRetries is
// the total number of attempts a task gets before terminal failure.
func NewWorker(resolver Resolver, auditLog AuditLog, queue Rescheduler, timeout time.Duration, maxRetries int, logger *logging.Logger) *Worker {
	return &Worker{
		resolver:   resolver,
		auditLog:   auditLog,
		queue:      queue,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// HandleMessage implements nsq.Handler. Malformed task payloads are dropped:
// retrying them can never succeed.
func (w *Worker) HandleMessage(m *nsq.Message) error {
	var t Task
	if err := json.Unmarshal(m.Body, &t); err != nil {
		w.logger.Plain().WithError(err).Error("bad task payload, dropping")
		return nil
	}

	ctx := tracing.ExtractTraceFromNSQ(context.Background(), t.TraceHeaders)
	w.Process(ctx, t)
	return nil
}

// Process runs one attempt of the retry state machine for t. All delivery-time
// errors are contained here and converted into audit records; nothing
// propagates back to the event submitter.
func (w *Worker) Process(ctx context.Context, t Task) {
	ctx, span := tracing.StartSpan(ctx, "worker.attempt",
		attribute.String("task_id", t.TaskID),
		attribute.Int64("subscription_id", t.SubscriptionID),
		attribute.Int("attempt", t.Attempt),
	)
	defer span.End()

	sub, err := w.resolver.Resolve(ctx, t.SubscriptionID)
	if err != nil {
		// Resolution failure is still a recorded attempt. No endpoint was
		// known at this point, so the target URL snapshot is empty.
		msg := fmt.Sprintf("subscription %d not found", t.SubscriptionID)
		if !errors.Is(err, subscription.ErrNotFound) {
			msg = fmt.Sprintf("resolve subscription %d: %v", t.SubscriptionID, err)
		}
		tracing.SetSpanError(ctx, err)
		w.record(ctx, t, "", nil, audit.OutcomeFailedAttempt, msg)
		metrics.RecordDelivery("failed_attempt")
		w.retryOrExhaust(ctx, t, "", msg, "not_found")
		return
	}

	body, err := json.Marshal(t.Payload)
	if err != nil {
		msg := fmt.Sprintf("marshal payload: %v", err)
		tracing.SetSpanError(ctx, err)
		w.record(ctx, t, sub.TargetURL, nil, audit.OutcomeFailedAttempt, msg)
		metrics.RecordDelivery("failed_attempt")
		w.retryOrExhaust(ctx, t, sub.TargetURL, msg, "other")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.TargetURL, bytes.NewReader(body))
	if err != nil {
		msg := fmt.Sprintf("build request: %v", err)
		w.record(ctx, t, sub.TargetURL, nil, audit.OutcomeFailedAttempt, msg)
		metrics.RecordDelivery("failed_attempt")
		w.retryOrExhaust(ctx, t, sub.TargetURL, msg, "other")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	tracing.AddSpanEvent(ctx, "http.deliver")
	start := time.Now()
	resp, doErr := w.client.Do(req)
	latency := time.Since(start)
	metrics.ObserveDeliveryLatency(latency.Seconds())

	if doErr != nil {
		// No status code was obtained; record the transport error and follow
		// the same retry logic as a non-2xx response.
		span.SetAttributes(attribute.String("http.error", doErr.Error()))
		w.record(ctx, t, sub.TargetURL, nil, audit.OutcomeFailedAttempt, doErr.Error())
		metrics.RecordDelivery("failed_attempt")
		w.retryOrExhaust(ctx, t, sub.TargetURL, doErr.Error(), classifyReason(doErr, 0))
		return
	}

	status := resp.StatusCode
	_ = resp.Body.Close()
	span.SetAttributes(
		attribute.Int("http.status_code", status),
		attribute.Int64("http.latency_ms", latency.Milliseconds()),
	)

	if status >= 200 && status < 300 {
		tracing.AddSpanEvent(ctx, "delivery.success")
		w.record(ctx, t, sub.TargetURL, &status, audit.OutcomeSuccess, "")
		metrics.RecordDelivery("success")
		w.logger.WithContext(ctx).WithTask(t.TaskID).WithSubscription(t.SubscriptionID).
			WithField("attempt", t.Attempt).Info("delivered")
		return
	}

	msg := fmt.Sprintf("received status code %d", status)
	w.record(ctx, t, sub.TargetURL, &status, audit.OutcomeFailedAttempt, msg)
	metrics.RecordDelivery("failed_attempt")
	w.retryOrExhaust(ctx, t, sub.TargetURL, msg, classifyReason(nil, status))
}

// retryOrExhaust reschedules the task with exponential backoff, or writes the
// terminal Failure record when retries are spent.
func (w *Worker) retryOrExhaust(ctx context.Context, t Task, targetURL, lastErr, reason string) {
	if t.Attempt < w.maxRetries {
		delay := Backoff(t.Attempt)
		tracing.AddSpanEvent(ctx, "delivery.reschedule",
			attribute.Int("next_attempt", t.Attempt+1),
			attribute.String("delay", delay.String()),
		)
		metrics.RecordRetry(reason)
		if err := w.queue.Reschedule(ctx, t, delay); err != nil {
			tracing.SetSpanError(ctx, err)
			w.logger.WithContext(ctx).WithTask(t.TaskID).WithError(err).Error("reschedule failed")
			return
		}
		w.logger.WithContext(ctx).WithTask(t.TaskID).WithSubscription(t.SubscriptionID).WithFields(map[string]any{
			"attempt": t.Attempt,
			"delay":   delay.String(),
		}).Info("attempt failed, rescheduled")
		return
	}

	// Retries exhausted: a second record at the same attempt number marks the
	// task terminally failed.
	tracing.AddSpanEvent(ctx, "delivery.exhausted", attribute.Int("attempt", t.Attempt))
	w.record(ctx, t, targetURL, nil, audit.OutcomeFailure, fmt.Sprintf("max retries reached: %s", lastErr))
	metrics.RecordDelivery("failure")
	w.logger.WithContext(ctx).WithTask(t.TaskID).WithSubscription(t.SubscriptionID).
		WithField("attempt", t.Attempt).Error("retries exhausted")
}

// record appends one audit record. An append failure is logged and swallowed:
// redelivering the message would duplicate attempt numbers, and losing the
// record is in the same accepted class as loss on a process crash.
func (w *Worker) record(ctx context.Context, t Task, targetURL string, statusCode *int, outcome audit.Outcome, errMsg string) {
	rec := audit.Record{
		TaskID:         t.TaskID,
		SubscriptionID: t.SubscriptionID,
		TargetURL:      targetURL,
		Payload:        t.Payload,
		AttemptNumber:  t.Attempt,
		Outcome:        outcome,
		StatusCode:     statusCode,
		ErrorMessage:   errMsg,
	}
	if err := w.auditLog.Append(ctx, rec); err != nil {
		tracing.SetSpanError(ctx, err)
		w.logger.WithContext(ctx).WithTask(t.TaskID).WithError(err).Error("audit append failed")
	}
}

func classifyReason(doErr error, status int) string {
	if doErr != nil {
		errLower := strings.ToLower(doErr.Error())
		if strings.Contains(errLower, "timeout") || strings.Contains(errLower, "deadline exceeded") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if status >= 500 {
		return "http_5xx"
	}
	if status == 429 {
		return "http_429"
	}
	if status >= 400 {
		return "http_4xx"
	}
	return "other"
}
