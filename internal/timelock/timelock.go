// Package timelock implements the deferred-grant coordinator behind
// policy.TimeLockPolicy: queue a pending request, notify interested
// parties with a cancellation link, then after lock_duration has elapsed
// (or sooner, if cancelled) report whether the request may proceed.
//
// Grounded on original_source's goldengate/policy.py TimeLockPolicy.grant
// and .cancel. The original blocks the request-handling thread in
// time.sleep(lock_duration); a Go port instead waits on a timer alongside
// a per-grant cancellation channel, so Cancel can wake a still-pending
// grant immediately rather than making every waiter sit out the full
// duration after the decision is already known.
package timelock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/goldengate/goldengate/internal/notify"
	"github.com/goldengate/goldengate/internal/timelockstore"
)

// redactedFields are stripped from the rendered request_information the
// same way internal/audit redacts its Details map, so a notification sent
// to a third party never carries a signing secret or signature.
var redactedFields = []string{"secret", "signature", "AWSAccessKeyId", "Signature"}

// Grant bundles what a TimeLockPolicy needs to defer a decision.
type Grant struct {
	Entity     string
	Duration   time.Duration
	Template   string
	Recipients []string
}

// Coordinator persists pending grants, dispatches their notifications,
// and resolves each to a final true/false once its lock elapses or is
// cancelled.
type Coordinator struct {
	store  timelockstore.Store
	broker notify.Broker
	logger *zap.Logger

	mu      sync.Mutex
	waiters map[string]chan struct{} // closed by Cancel to wake a pending Grant early
}

// NewCoordinator builds a Coordinator backed by store and broker.
func NewCoordinator(store timelockstore.Store, broker notify.Broker, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		broker:  broker,
		logger:  logger,
		waiters: make(map[string]chan struct{}),
	}
}

// Request queues req for the given grant, sends the rendered notification,
// waits out the lock (or until cancelled), and reports whether it may
// proceed. ctx cancellation aborts the wait early and returns ctx.Err();
// it does not cancel the underlying grant, which remains in the store,
// where a later Cancel call can still mark it cancelled.
//
// onQueued, if non-nil, is called with the grant's id as soon as it is
// persisted and before the wait begins, so a caller can expose a
// cancellation link (e.g. from an admin HTTP handler) without waiting for
// the lock to resolve. The notification sent to Recipients already
// contains the same id via the request_uuid template variable.
func (c *Coordinator) Request(ctx context.Context, req *ggrequest.Request, g Grant, onQueued func(id string)) (bool, string, error) {
	id := uuid.New().String()
	if err := c.store.Insert(id); err != nil {
		return false, id, fmt.Errorf("timelock: persist grant: %w", err)
	}

	cancelCh := make(chan struct{})
	c.mu.Lock()
	c.waiters[id] = cancelCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	if onQueued != nil {
		onQueued(id)
	}

	message, err := renderNotification(g.Template, req, g.Duration, id)
	if err != nil {
		return false, id, fmt.Errorf("timelock: render notification: %w", err)
	}
	if err := c.broker.Send(notify.Notification{Recipients: g.Recipients, Message: message}); err != nil {
		c.logger.Warn("time-lock notification delivery failed",
			zap.String("request_uuid", id), zap.Error(err))
	}

	timer := time.NewTimer(g.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-cancelCh:
	case <-ctx.Done():
		return false, id, ctx.Err()
	}

	rec, err := c.store.Get(id)
	if err != nil {
		return false, id, fmt.Errorf("timelock: read grant: %w", err)
	}
	return !rec.Cancelled, id, nil
}

// Cancel marks a pending or already-resolved grant cancelled and, if a
// Request call is still waiting on it, wakes it immediately instead of
// letting it sit out the rest of the lock duration.
func (c *Coordinator) Cancel(id string) error {
	if err := c.store.SetCancelled(id); err != nil {
		return fmt.Errorf("timelock: cancel %q: %w", id, err)
	}
	c.mu.Lock()
	ch, waiting := c.waiters[id]
	c.mu.Unlock()
	if waiting {
		select {
		case <-ch:
			// already closed by a concurrent Cancel
		default:
			close(ch)
		}
	}
	return nil
}

func renderNotification(template string, req *ggrequest.Request, duration time.Duration, requestUUID string) (string, error) {
	info, err := sanitizedRequestInformation(req)
	if err != nil {
		return "", err
	}
	executionTime := time.Now().UTC().Add(duration).Format("Mon, 02 Jan 2006 15:04:05 -0700")
	vars := map[string]string{
		"request_information":    info,
		"request_execution_time": executionTime,
		"time_lock_duration":     fmt.Sprintf("%g", duration.Minutes()),
		"request_uuid":           requestUUID,
	}
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{ "+key+" }}", value)
	}
	return out, nil
}

// sanitizedRequestInformation renders req as indented JSON with any
// credential-bearing field blanked out, mirroring original_source's
// AuditTrail.sanitize(json.dumps(request.to_dict(), indent=4)).
func sanitizedRequestInformation(req *ggrequest.Request) (string, error) {
	fields := map[string]interface{}{
		"method":      req.Method,
		"scheme":      req.Scheme,
		"host":        req.Host,
		"path":        req.Path(),
		"remote_addr": req.RemoteAddr,
		"remote_user": req.RemoteUser,
		"query":       map[string]string{},
	}
	query := map[string]string{}
	for _, p := range req.Query {
		if redacted(p.Key) {
			query[p.Key] = "***REDACTED***"
			continue
		}
		query[p.Key] = p.Value
	}
	fields["query"] = query

	data, err := json.MarshalIndent(fields, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal request information: %w", err)
	}
	return string(data), nil
}

func redacted(field string) bool {
	for _, r := range redactedFields {
		if r == field {
			return true
		}
	}
	return false
}
