// Package gateway implements the request pipeline: for each inbound HTTP
// request, find the first configured ruleset whose match stage applies,
// run its filter/policy/modify/proxy/audit stages in order, and write the
// result back to the client. Grounded on original_source's
// goldengate/__init__.py Application.__call__ and Application.load_config,
// with Go idiom (explicit http.Handler, panic recovery via
// internal/middleware) following teacher internal/api/router.go.
package gateway

import (
	"io"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/goldengate/goldengate/internal/audit"
	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/goldengate/goldengate/internal/metrics"
	"github.com/goldengate/goldengate/internal/ratelimit"
	"github.com/goldengate/goldengate/internal/ruleengine"
	"github.com/goldengate/goldengate/internal/upstream"
)

// Gateway is the compiled, ready-to-serve pipeline.
type Gateway struct {
	Rulesets []*ruleengine.Ruleset
	Upstream *upstream.Client
	Logger   *zap.SugaredLogger

	// Audit records pipeline decisions for later inspection. Nil disables
	// audit logging entirely (e.g. in tests).
	Audit *audit.Logger

	// Limiter throttles callers before the match stage even runs, keyed by
	// remote address (the only thing known about a caller before a filter
	// rule authenticates it). Nil disables rate limiting.
	Limiter *ratelimit.EntityLimiter
}

// ServeHTTP implements http.Handler. It never panics on pipeline errors --
// every error path is translated to a status code here; panics from a
// misbehaving rule are the caller's responsibility to recover (see
// internal/middleware.Recoverer, composed by cmd/goldengate).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.Limiter != nil && !g.Limiter.Allow(remoteIP(r.RemoteAddr)) {
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	req, err := buildRequest(r)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	resp, rulesetName, err := g.process(r.Context(), req)
	if err != nil {
		g.logger().Errorw("pipeline error", "ruleset", rulesetName, "error", err)
		metrics.RecordRequest(rulesetName, metrics.StatusError)
		writeResponse(w, ggrequest.NewResponse(http.StatusInternalServerError, "Internal Server Error"))
		return
	}

	metrics.RecordRequest(rulesetName, statusFor(resp.StatusCode))
	writeResponse(w, resp)
}

func (g *Gateway) logger() *zap.SugaredLogger {
	if g.Logger != nil {
		return g.Logger
	}
	return zap.NewNop().Sugar()
}

func statusFor(code int) string {
	switch {
	case code == http.StatusForbidden:
		return metrics.StatusDenied
	case code == http.StatusNotImplemented:
		return metrics.StatusNoMatch
	case code >= 500:
		return metrics.StatusError
	default:
		return metrics.StatusOK
	}
}

// buildRequest translates an inbound *http.Request into the pipeline's
// Request representation.
func buildRequest(r *http.Request) (*ggrequest.Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}

	return &ggrequest.Request{
		Method:      r.Method,
		Scheme:      scheme,
		Host:        r.Host,
		PathInfo:    r.URL.Path,
		Query:       ggrequest.ParseQuery(r.URL.RawQuery),
		Header:      r.Header.Clone(),
		Body:        body,
		RemoteAddr:  remoteIP(r.RemoteAddr),
		ContentType: r.Header.Get("Content-Type"),
	}, nil
}

// remoteIP strips the port net/http's server always appends to
// r.RemoteAddr, since internal/rules's subnet/IP matchers parse RemoteAddr
// with net.ParseIP and a "host:port" string never parses as an IP. Falls
// back to the raw value if it has no port (e.g. a Unix socket peer).
func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// writeResponse writes a pipeline Response to the wire verbatim.
func writeResponse(w http.ResponseWriter, resp *ggrequest.Response) {
	resp.SyncHeader()
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}
