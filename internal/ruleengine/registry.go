package ruleengine

import (
	"strings"

	"github.com/goldengate/goldengate/internal/credstore"
	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/rules"
)

// LoadCredsFunc resolves a credentials-file path to a loaded Store; the
// registry's aws_signature/aws_sign constructors use it, and callers
// typically wrap credstore.Load with an in-process cache so the same file
// isn't reparsed by every ruleset that references it.
type LoadCredsFunc func(path string) (*credstore.Store, error)

// matchConstructor builds a match or filter predicate from a verb's
// remaining positional args and kwargs.
type matchConstructor func(args []string, kwargs map[string]string) (rules.Predicate, error)

// modifyConstructor builds a modify/audit rule from a verb's remaining
// positional args and kwargs.
type modifyConstructor func(args []string, kwargs map[string]string) (rules.ModifyFunc, error)

// Registry resolves (stage-category, verb) to a compiled-rule constructor,
// per spec.md §4.4: modify_request/modify_response collapse to "modify",
// audit_request/audit_response share that same "modify" registry.
type Registry struct {
	match  map[string]matchConstructor
	filter map[string]matchConstructor
	modify map[string]modifyConstructor
}

// NewRegistry builds the standard registry with every built-in verb
// registered. loadCreds backs the aws_signature and aws_sign verbs.
func NewRegistry(loadCreds LoadCredsFunc) *Registry {
	r := &Registry{
		match:  make(map[string]matchConstructor),
		filter: make(map[string]matchConstructor),
		modify: make(map[string]modifyConstructor),
	}
	r.registerBuiltins(loadCreds)
	return r
}

func (r *Registry) registerBuiltins(loadCreds LoadCredsFunc) {
	requestVerbs := []string{
		"method", "scheme", "script_name", "path_info", "remote_user",
		"remote_addr", "host", "host_url", "application_url", "path_url",
		"url", "path", "path_qs", "query_string",
	}

	allConstructor := func(args []string, kwargs map[string]string) (rules.Predicate, error) {
		return rules.All(), nil
	}
	noneConstructor := func(args []string, kwargs map[string]string) (rules.Predicate, error) {
		return rules.None(), nil
	}
	headerConstructor := func(args []string, kwargs map[string]string) (rules.Predicate, error) {
		if len(args) < 2 {
			return nil, ggerrors.NewConfigError("header match requires at least a \"key\" and \"type\"")
		}
		return rules.HeaderMatch(args[0], args[1], args[2:])
	}

	r.match["all"] = allConstructor
	r.filter["all"] = allConstructor
	r.match["none"] = noneConstructor
	r.filter["none"] = noneConstructor
	r.match["header"] = headerConstructor
	r.filter["header"] = headerConstructor

	for _, verb := range requestVerbs {
		verb := verb
		constructor := func(args []string, kwargs map[string]string) (rules.Predicate, error) {
			if len(args) < 1 {
				return nil, ggerrors.NewConfigError("%s requires a match type", verb)
			}
			return rules.RequestMatch(verb, args[0], args[1:])
		}
		r.match[verb] = constructor
		r.filter[verb] = constructor
	}

	r.filter["aws_signature"] = func(args []string, kwargs map[string]string) (rules.Predicate, error) {
		return rules.AWSSignature(rules.AWSSignatureArgs{
			Creds:           kwargs["creds"],
			MaxSignatureAge: atoiOrZero(kwargs["max_signature_age"]),
		}, loadCreds)
	}

	r.modify["url"] = func(args []string, kwargs map[string]string) (rules.ModifyFunc, error) {
		if len(args) < 2 {
			return nil, ggerrors.NewConfigError("URLModifyRule requires \"verb\" and \"action\"")
		}
		return rules.URLModify("url", args[0], args[1])
	}
	r.modify["method"] = func(args []string, kwargs map[string]string) (rules.ModifyFunc, error) {
		if len(args) < 2 {
			return nil, ggerrors.NewConfigError("URLModifyRule requires \"verb\" and \"action\"")
		}
		return rules.URLModify("method", args[0], args[1])
	}
	for _, verb := range []string{"content_type", "charset", "host", "body", "cache_control"} {
		verb := verb
		r.modify[verb] = func(args []string, kwargs map[string]string) (rules.ModifyFunc, error) {
			if len(args) < 1 {
				return nil, ggerrors.NewConfigError("RequestModifyRule requires \"verb\" and \"action\"")
			}
			return rules.AttrModify(verb, args[0], strings.Join(args[1:], " "))
		}
	}
	r.modify["header"] = func(args []string, kwargs map[string]string) (rules.ModifyFunc, error) {
		if len(args) < 2 {
			return nil, ggerrors.NewConfigError("HeaderModifyRule requires \"action\" and \"key\"")
		}
		return rules.HeaderModify(args[0], args[1], strings.Join(args[2:], " "))
	}
	r.modify["aws_sign"] = func(args []string, kwargs map[string]string) (rules.ModifyFunc, error) {
		return rules.AWSSign(rules.AWSSignArgs{
			Creds:            kwargs["creds"],
			Key:              kwargs["key"],
			SignatureMethod:  kwargs["signature_method"],
			SignatureVersion: kwargs["signature_version"],
		}, loadCreds)
	}
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
