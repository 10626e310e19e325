package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goldengate/goldengate/internal/audit"
	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/goldengate/goldengate/internal/metrics"
	"github.com/goldengate/goldengate/internal/policy"
	"github.com/goldengate/goldengate/internal/ruleengine"
)

// process runs spec.md §4.7's pipeline: iterate Rulesets in declaration
// order; the first whose match stage applies processes the request to
// completion and no other ruleset is consulted. The returned string is
// the matched ruleset's name ("" if none matched), used for metrics and
// logging regardless of whether err is nil.
func (g *Gateway) process(ctx context.Context, req *ggrequest.Request) (*ggrequest.Response, string, error) {
	for _, rs := range g.Rulesets {
		matched, err := rs.Match.Evaluate(req)
		if err != nil {
			return nil, rs.Name, err
		}
		if !matched {
			continue
		}

		permitted, err := rs.Filter.Evaluate(req)
		if err != nil {
			return nil, rs.Name, err
		}
		if !permitted {
			g.logEvent(audit.EventFilterDenied, rs.Name, req, "denied by filter stage")
			metrics.RecordFilterDenied(rs.Name)
			return ggrequest.NewResponse(http.StatusForbidden, "Verboten"), rs.Name, nil
		}

		if resp, err := g.authorize(ctx, rs, req); err != nil {
			return nil, rs.Name, err
		} else if resp != nil {
			return resp, rs.Name, nil
		}

		modified, err := rs.ModifyRequest.ApplyRequest(req)
		if err != nil {
			return nil, rs.Name, err
		}

		start := time.Now()
		resp, err := g.Upstream.Proxy(ctx, modified)
		metrics.ObserveUpstreamDuration(rs.Name, time.Since(start))
		if err != nil {
			return nil, rs.Name, err
		}

		resp, err = rs.ModifyResponse.ApplyResponse(modified, resp)
		if err != nil {
			return nil, rs.Name, err
		}

		if err := rs.AuditRequest.RunAuditRequest(modified); err != nil {
			return nil, rs.Name, err
		}
		if err := rs.AuditResponse.RunAuditResponse(modified, resp); err != nil {
			return nil, rs.Name, err
		}
		g.logEvent(audit.EventRequestAudited, rs.Name, modified, "")
		g.logResponseEvent(rs.Name, modified, resp)

		return resp, rs.Name, nil
	}

	return ggrequest.NewResponse(http.StatusNotImplemented, "Not Implemented"), "", nil
}

// pendingTimeLocks counts time-lock grants queued by authorize and not yet
// resolved; it backs the metrics.SetTimeLockActive gauge.
var pendingTimeLocks atomic.Int64

// authorize resolves rs.Policies against req.Entity, enriching the pipeline
// with the matcher/policy/time-lock layer of spec.md §4.5/§4.6. A ruleset
// with no policies authorizes every request that reached it (unchanged
// behavior from before this layer existed). A non-nil response means
// "stop here and write this response"; a nil response and nil error means
// authorization passed and the caller should continue the pipeline.
func (g *Gateway) authorize(ctx context.Context, rs *ruleengine.Ruleset, req *ggrequest.Request) (*ggrequest.Response, error) {
	if len(rs.Policies) == 0 {
		return nil, nil
	}

	p, err := policy.PolicyFor(req.Entity, req, rs.Policies)
	if err != nil {
		var miss *ggerrors.AuthorizationMiss
		if errors.As(err, &miss) {
			g.logEvent(audit.EventAuthFailed, rs.Name, req, err.Error())
			return ggrequest.NewResponse(http.StatusForbidden, "Verboten"), nil
		}
		return nil, err
	}

	switch p.Decide() {
	case policy.Deny:
		g.logEvent(audit.EventAuthFailed, rs.Name, req, "denied by policy")
		return ggrequest.NewResponse(http.StatusForbidden, "Verboten"), nil

	case policy.Allow:
		return nil, nil

	case policy.Deferred:
		tlp, ok := p.(*policy.TimeLockPolicy)
		if !ok {
			return nil, ggerrors.NewRuleExecutionError("deferred policy is not a time-lock policy")
		}

		var grantID string
		queued := false
		granted, id, err := tlp.Grant(ctx, req.Entity, req, func(qid string) {
			grantID = qid
			queued = true
			metrics.SetTimeLockActive(int(pendingTimeLocks.Add(1)))
		})
		if queued {
			metrics.SetTimeLockActive(int(pendingTimeLocks.Add(-1)))
		}
		if grantID == "" {
			grantID = id
		}
		if err != nil {
			return nil, err
		}
		if !granted {
			g.logEvent(audit.EventTimeLockDenied, rs.Name, req, "grant "+grantID+" cancelled")
			return ggrequest.NewResponse(http.StatusForbidden, "Verboten"), nil
		}
		g.logEvent(audit.EventTimeLockGranted, rs.Name, req, "grant "+grantID+" released")
		return nil, nil

	default:
		return nil, ggerrors.NewRuleExecutionError("unknown policy decision")
	}
}

// logEvent records a pipeline decision to the audit trail, if configured.
func (g *Gateway) logEvent(t audit.EventType, rulesetName string, req *ggrequest.Request, message string) {
	if g.Audit == nil {
		return
	}
	g.Audit.Log(&audit.Event{
		EventType:   t,
		RulesetName: rulesetName,
		Entity:      req.Entity,
		AWSAction:   req.AWSAction(),
		RemoteAddr:  req.RemoteAddr,
		Resource:    req.Path(),
		Status:      eventStatus(t),
		ErrorMessage: message,
	})
}

func (g *Gateway) logResponseEvent(rulesetName string, req *ggrequest.Request, resp *ggrequest.Response) {
	if g.Audit == nil {
		return
	}
	g.Audit.Log(&audit.Event{
		EventType:      audit.EventResponseAudited,
		RulesetName:    rulesetName,
		Entity:         req.Entity,
		AWSAction:      req.AWSAction(),
		RemoteAddr:     req.RemoteAddr,
		Resource:       req.Path(),
		Status:         "success",
		UpstreamStatus: resp.StatusCode,
	})
}

func eventStatus(t audit.EventType) string {
	switch t {
	case audit.EventFilterDenied, audit.EventAuthFailed, audit.EventTimeLockDenied:
		return "failure"
	default:
		return "success"
	}
}
