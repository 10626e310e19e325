package rules

import (
	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
)

// Predicate evaluates a compiled match or filter rule against a request.
type Predicate func(req *ggrequest.Request) (bool, error)

// requestAttrs is the set of attributes a RequestMatchRule may name, per
// spec.md §4.3.
var requestAttrs = map[string]bool{
	"method": true, "scheme": true, "script_name": true, "path_info": true,
	"remote_user": true, "remote_addr": true, "host": true, "host_url": true,
	"application_url": true, "path_url": true, "url": true, "path": true,
	"path_qs": true, "query_string": true,
}

// All matches every request, unconditionally.
func All() Predicate {
	return func(req *ggrequest.Request) (bool, error) { return true, nil }
}

// None matches no request, unconditionally.
func None() Predicate {
	return func(req *ggrequest.Request) (bool, error) { return false, nil }
}

// RequestMatch builds a predicate for "<attr> <matchtype> <param...>".
func RequestMatch(attr, matchtype string, params []string) (Predicate, error) {
	if !requestAttrs[attr] {
		return nil, ggerrors.NewConfigError("unknown verb: %s", attr)
	}
	fn, err := LookupMatchType(matchtype)
	if err != nil {
		return nil, err
	}
	return func(req *ggrequest.Request) (bool, error) {
		value, ok := req.Attr(attr)
		if !ok {
			return false, nil
		}
		return fn(value, params)
	}, nil
}

// HeaderMatch builds a predicate for "header <name> <matchtype> <param...>".
// An absent header is always a non-match.
func HeaderMatch(name, matchtype string, params []string) (Predicate, error) {
	fn, err := LookupMatchType(matchtype)
	if err != nil {
		return nil, err
	}
	return func(req *ggrequest.Request) (bool, error) {
		value := req.Header.Get(name)
		if value == "" {
			return false, nil
		}
		return fn(value, params)
	}, nil
}
