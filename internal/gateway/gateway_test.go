package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/goldengate/goldengate/internal/policy"
	"github.com/goldengate/goldengate/internal/ruleengine"
	"github.com/goldengate/goldengate/internal/upstream"
)

func compileRuleset(t *testing.T, raw ruleengine.RawRuleset, policies []policy.Policy) *ruleengine.Ruleset {
	t.Helper()
	reg := ruleengine.NewRegistry(nil)
	rs, err := ruleengine.Compile(reg, raw, policies)
	require.NoError(t, err)
	return rs
}

func newGateway(t *testing.T, rulesets ...*ruleengine.Ruleset) (*Gateway, *httptest.Server) {
	t.Helper()
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("upstream-ok"))
	}))
	t.Cleanup(origin.Close)

	return &Gateway{
		Rulesets: rulesets,
		Upstream: upstream.NewClient(5 * time.Second),
		Logger:   zaptest.NewLogger(t).Sugar(),
	}, origin
}

func TestServeHTTPProxiesMatchedRuleset(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "open",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"all"},
			ruleengine.StageFilter: {"permit all"},
		},
	}
	rs := compileRuleset(t, raw, nil)
	gw, origin := newGateway(t, rs)

	req := httptest.NewRequest(http.MethodGet, origin.URL+"/anything", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "upstream-ok", rec.Body.String())
}

func TestServeHTTPFilterDeniedReturns403(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "closed",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"all"},
			ruleengine.StageFilter: {"reject all"},
		},
	}
	rs := compileRuleset(t, raw, nil)
	gw, origin := newGateway(t, rs)

	req := httptest.NewRequest(http.MethodGet, origin.URL+"/x", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Verboten")
}

func TestServeHTTPNoMatchReturns501(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "never",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"path is /only-this"},
			ruleengine.StageFilter: {"permit all"},
		},
	}
	rs := compileRuleset(t, raw, nil)
	gw, origin := newGateway(t, rs)

	req := httptest.NewRequest(http.MethodGet, origin.URL+"/else", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServeHTTPUpstreamErrorReturns500(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "broken",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"all"},
			ruleengine.StageFilter: {"permit all"},
		},
	}
	rs := compileRuleset(t, raw, nil)
	gw := &Gateway{
		Rulesets: []*ruleengine.Ruleset{rs},
		Upstream: upstream.NewClient(1 * time.Millisecond),
		Logger:   zaptest.NewLogger(t).Sugar(),
	}

	req := httptest.NewRequest(http.MethodGet, "http://10.255.255.1/x", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServeHTTPPolicyDenyOverridesPassingFilter(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "governed",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"all"},
			ruleengine.StageFilter: {"permit all"},
		},
	}
	rs := compileRuleset(t, raw, []policy.Policy{policy.DenyPolicy{M: policy.Always{}}})
	gw, origin := newGateway(t, rs)

	req := httptest.NewRequest(http.MethodGet, origin.URL+"/x", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTPPolicyAuthorizationMissReturns403(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "narrow",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"all"},
			ruleengine.StageFilter: {"permit all"},
		},
	}
	rs := compileRuleset(t, raw, []policy.Policy{policy.AllowPolicy{M: policy.NewEntity("someone-else")}})
	gw, origin := newGateway(t, rs)

	req := httptest.NewRequest(http.MethodGet, origin.URL+"/x", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServeHTTPMatchesRemoteAddrSubnetThroughBuildRequest(t *testing.T) {
	raw := ruleengine.RawRuleset{
		Name: "internal-only",
		Stage: map[string][]string{
			ruleengine.StageMatch:  {"remote_addr subnet 192.0.2.0/24"},
			ruleengine.StageFilter: {"permit all"},
		},
	}
	rs := compileRuleset(t, raw, nil)
	gw, origin := newGateway(t, rs)

	// httptest.NewRequest's default RemoteAddr is "192.0.2.1:1234" --
	// net/http's server-assigned form, with a port that buildRequest must
	// strip before the subnet matcher's net.ParseIP can succeed.
	req := httptest.NewRequest(http.MethodGet, origin.URL+"/x", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
