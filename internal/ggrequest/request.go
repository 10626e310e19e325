// Package ggrequest defines the Request and Response types the pipeline
// passes between stages. Query parameters are modeled as an ordered,
// multi-valued list (not a map) because AWS SigV2 canonicalization and the
// rule DSL both need stable iteration order and repeated keys.
package ggrequest

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Param is one query-string key/value pair. Repeated keys are represented
// as repeated Params, in the order they appeared on the wire.
type Param struct {
	Key   string
	Value string
}

// Query is an ordered, multi-valued query parameter list.
type Query []Param

// Get returns the first value for key, and whether it was present.
func (q Query) Get(key string) (string, bool) {
	for _, p := range q {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Values returns every value for key, in wire order.
func (q Query) Values(key string) []string {
	var out []string
	for _, p := range q {
		if p.Key == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// Set replaces every occurrence of key with a single value, appending if
// key was absent.
func (q *Query) Set(key, value string) {
	q.Del(key)
	*q = append(*q, Param{Key: key, Value: value})
}

// Add appends a value for key without removing existing occurrences.
func (q *Query) Add(key, value string) {
	*q = append(*q, Param{Key: key, Value: value})
}

// Del removes every occurrence of key.
func (q *Query) Del(key string) {
	out := (*q)[:0]
	for _, p := range *q {
		if p.Key != key {
			out = append(out, p)
		}
	}
	*q = out
}

// Clone returns an independent copy.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	copy(out, q)
	return out
}

// SortedKeys returns the distinct keys in q, sorted lexicographically.
func (q Query) SortedKeys() []string {
	seen := map[string]bool{}
	var keys []string
	for _, p := range q {
		if !seen[p.Key] {
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

// ParseQuery parses a raw query string ("a=1&b=2") preserving order and
// duplicate keys. Percent-decoding follows standard query-string rules.
func ParseQuery(raw string) Query {
	if raw == "" {
		return nil
	}
	var q Query
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key := pair
		value := ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
			value = pair[i+1:]
		}
		k, err := url.QueryUnescape(key)
		if err != nil {
			k = key
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			v = value
		}
		q = append(q, Param{Key: k, Value: v})
	}
	return q
}

// Request is the gateway's in-flight representation of an inbound HTTP
// transaction. Modify-stage rules mutate it in place; the match and filter
// stages only read it.
type Request struct {
	Method     string
	Scheme     string
	Host       string // includes port, e.g. "example.com:8080"
	ScriptName string
	PathInfo   string // the path, e.g. "/foo/bar"
	Query      Query
	Header     http.Header
	Body       []byte
	RemoteAddr string
	RemoteUser string

	// Entity is the principal an aws_signature filter rule resolved the
	// request to, empty until authentication succeeds. The policy layer
	// resolves authorization against this value, not against
	// AWSAccessKeyId directly, since one entity may own several keys.
	Entity string

	// OverrideURL and OverrideMethod are written by "url set"/"method set"
	// modify rules and by aws_sign; the proxy client reads them with
	// override > original precedence. Nil means "not overridden".
	OverrideURL    *string
	OverrideMethod *string

	// ContentType, Charset, and CacheControl back the RequestModifyRule
	// attribute verbs; Header still carries whatever was actually set on
	// the wire unless a modify rule pushes these into it explicitly.
	ContentType  string
	Charset      string
	CacheControl string
}

// Path returns ScriptName+PathInfo, defaulting to "/" when both are empty.
func (r *Request) Path() string {
	p := r.ScriptName + r.PathInfo
	if p == "" {
		return "/"
	}
	return p
}

// QueryString re-encodes Query in wire order using standard percent-encoding.
func (r *Request) QueryString() string {
	parts := make([]string, 0, len(r.Query))
	for _, p := range r.Query {
		parts = append(parts, url.QueryEscape(p.Key)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// PathQS returns Path with "?query_string" appended if there are any
// query parameters.
func (r *Request) PathQS() string {
	if qs := r.QueryString(); qs != "" {
		return r.Path() + "?" + qs
	}
	return r.Path()
}

// HostURL returns "scheme://host".
func (r *Request) HostURL() string {
	return r.Scheme + "://" + r.Host
}

// ApplicationURL returns "scheme://host" + ScriptName.
func (r *Request) ApplicationURL() string {
	return r.HostURL() + r.ScriptName
}

// PathURL returns "scheme://host" + Path().
func (r *Request) PathURL() string {
	return r.HostURL() + r.Path()
}

// URL returns the full request URL, including query string.
func (r *Request) URL() string {
	if qs := r.QueryString(); qs != "" {
		return r.PathURL() + "?" + qs
	}
	return r.PathURL()
}

// AWSAction returns the value of the "Action" query parameter, or "" if
// absent.
func (r *Request) AWSAction() string {
	v, _ := r.Query.Get("Action")
	return v
}

// EffectiveURL returns OverrideURL if set, else URL().
func (r *Request) EffectiveURL() string {
	if r.OverrideURL != nil {
		return *r.OverrideURL
	}
	return r.URL()
}

// EffectiveMethod returns OverrideMethod if set, else Method.
func (r *Request) EffectiveMethod() string {
	if r.OverrideMethod != nil {
		return *r.OverrideMethod
	}
	return r.Method
}

// Attr looks up a match-rule attribute by name, the set named in spec
// §4.3's RequestMatchRule verb list. ok is false for unknown names.
func (r *Request) Attr(name string) (string, bool) {
	switch name {
	case "method":
		return r.Method, true
	case "scheme":
		return r.Scheme, true
	case "script_name":
		return r.ScriptName, true
	case "path_info":
		return r.PathInfo, true
	case "remote_user":
		return r.RemoteUser, true
	case "remote_addr":
		return r.RemoteAddr, true
	case "host":
		return r.Host, true
	case "host_url":
		return r.HostURL(), true
	case "application_url":
		return r.ApplicationURL(), true
	case "path_url":
		return r.PathURL(), true
	case "url":
		return r.URL(), true
	case "path":
		return r.Path(), true
	case "path_qs":
		return r.PathQS(), true
	case "query_string":
		return r.QueryString(), true
	default:
		return "", false
	}
}

// Clone returns a deep-enough copy for a modify rule to mutate without
// affecting the caller's copy (Header and Query are copied; Body is shared,
// since rules that touch it always replace the slice wholesale).
func (r *Request) Clone() *Request {
	clone := *r
	clone.Query = r.Query.Clone()
	clone.Header = r.Header.Clone()
	if r.OverrideURL != nil {
		u := *r.OverrideURL
		clone.OverrideURL = &u
	}
	if r.OverrideMethod != nil {
		m := *r.OverrideMethod
		clone.OverrideMethod = &m
	}
	return &clone
}

// Response is the gateway's representation of an outbound HTTP response,
// either produced by the upstream proxy or short-circuited by the
// pipeline (403/500/501). ContentType, Charset, and CacheControl mirror
// the same fields on Request so modify_response rules (which share the
// modify_request verb set per the rule compiler's shared registry) can
// set them uniformly; SyncHeader folds them into Header before the
// response is written to the wire.
type Response struct {
	StatusCode   int
	Header       http.Header
	Body         []byte
	ContentType  string
	Charset      string
	CacheControl string
}

// NewResponse builds a plain-text Response with the given status and body.
func NewResponse(status int, body string) *Response {
	h := make(http.Header)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{StatusCode: status, Header: h, Body: []byte(body)}
}

// Mutable is the narrow surface the modify/audit rule library needs.
// *Request and *Response both implement it, so the same compiled modify
// rule can run against either -- the modify_request/modify_response and
// audit_request/audit_response stages all share one rule registry, per
// spec.md §4.4.
type Mutable interface {
	GetHeader() http.Header
	// SetAttr applies a RequestModifyRule-style attribute set
	// (content_type/charset/host/body/cache_control). "host" is only
	// meaningful for a Request and errors for a Response.
	SetAttr(name, value string) error
	// Attr looks up a named attribute of the request or response. Response
	// only knows content_type/charset/cache_control; everything else is
	// "not found". "$name" header templates are resolved against the
	// *Request's Attr, not through this interface.
	Attr(name string) (string, bool)
}

// GetHeader implements Mutable.
func (r *Request) GetHeader() http.Header { return r.Header }

// SetAttr implements Mutable for Request.
func (r *Request) SetAttr(name, value string) error {
	switch name {
	case "content_type":
		r.ContentType = value
	case "charset":
		r.Charset = value
	case "host":
		r.Host = value
	case "body":
		r.Body = []byte(value)
	case "cache_control":
		r.CacheControl = value
	default:
		return errUnknownAttr(name)
	}
	return nil
}

// GetHeader implements Mutable.
func (r *Response) GetHeader() http.Header { return r.Header }

// SetAttr implements Mutable for Response. "host" has no response
// equivalent.
func (r *Response) SetAttr(name, value string) error {
	switch name {
	case "content_type":
		r.ContentType = value
	case "charset":
		r.Charset = value
	case "body":
		r.Body = []byte(value)
	case "cache_control":
		r.CacheControl = value
	default:
		return errUnknownAttr(name)
	}
	return nil
}

// Attr implements Mutable for Response: only the attributes a response
// actually has resolve; everything else reports not-found.
func (r *Response) Attr(name string) (string, bool) {
	switch name {
	case "content_type":
		return r.ContentType, true
	case "charset":
		return r.Charset, true
	case "cache_control":
		return r.CacheControl, true
	default:
		return "", false
	}
}

type attrError string

func (e attrError) Error() string { return string(e) }

func errUnknownAttr(name string) error {
	return attrError("unknown verb: " + name)
}

// SyncHeader folds ContentType/Charset/CacheControl into Header, the way
// the proxy and the final response writer expect to find them.
func (r *Response) SyncHeader() {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	if r.ContentType != "" {
		ct := r.ContentType
		if r.Charset != "" {
			ct += "; charset=" + r.Charset
		}
		r.Header.Set("Content-Type", ct)
	}
	if r.CacheControl != "" {
		r.Header.Set("Cache-Control", r.CacheControl)
	}
}
