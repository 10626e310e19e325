package rules

import (
	"os"
	"regexp"
	"strings"

	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
)

// ModifyFunc is a compiled modify/audit rule. It operates on whichever of
// Request or Response the stage hands it (modify_request/audit_request get
// a *ggrequest.Request, modify_response/audit_response get a
// *ggrequest.Response); both implement ggrequest.Mutable. req is always the
// original inbound request, used to resolve "$name" header templates even
// when target is a Response.
type ModifyFunc func(req *ggrequest.Request, target ggrequest.Mutable) (ggrequest.Mutable, error)

var templateVar = regexp.MustCompile(`\$([a-z_]+)`)

// templateValue expands "$name" tokens in value against req's attributes,
// falling back to the environment when name is not a known request
// attribute, per spec.md §4.3: "$name is replaced by the request attribute
// of that name, else the environment value of that name; unresolved =>
// rule compile/execute error."
func templateValue(value string, req *ggrequest.Request) (string, error) {
	var rerr error
	expanded := templateVar.ReplaceAllStringFunc(value, func(tok string) string {
		name := tok[1:]
		if replacement, ok := req.Attr(name); ok {
			return replacement
		}
		if replacement, ok := os.LookupEnv(name); ok {
			return replacement
		}
		if rerr == nil {
			rerr = ggerrors.NewRuleExecutionError("unable to replace template variable $%s: unknown request attribute or environment variable", name)
		}
		return tok
	})
	if rerr != nil {
		return "", rerr
	}
	return expanded, nil
}

// URLModify compiles "url set <value>" / "method set <value>": writes to
// the request's override slots. Only meaningful against a Request; using
// it in a modify_response/audit_response ruleset is a rule execution error.
func URLModify(verb, action, value string) (ModifyFunc, error) {
	if action != "set" {
		return nil, ggerrors.NewConfigError("request verbs can only be \"set\", not %q", action)
	}
	if verb != "url" && verb != "method" {
		return nil, ggerrors.NewConfigError("unknown verb: %s", verb)
	}
	return func(req *ggrequest.Request, target ggrequest.Mutable) (ggrequest.Mutable, error) {
		r, ok := target.(*ggrequest.Request)
		if !ok {
			return nil, ggerrors.NewRuleExecutionError("%s set: no override slot on a response", verb)
		}
		v := value
		if verb == "url" {
			r.OverrideURL = &v
		} else {
			r.OverrideMethod = &v
		}
		return r, nil
	}, nil
}

// AttrModify compiles "<verb> set <value>" for verb in {content_type,
// charset, host, body, cache_control}.
func AttrModify(verb, action, value string) (ModifyFunc, error) {
	if action != "set" {
		return nil, ggerrors.NewConfigError("request verbs can only be \"set\", not %q", action)
	}
	switch verb {
	case "content_type", "charset", "host", "body", "cache_control":
	default:
		return nil, ggerrors.NewConfigError("unknown verb: %s", verb)
	}
	return func(req *ggrequest.Request, target ggrequest.Mutable) (ggrequest.Mutable, error) {
		if err := target.SetAttr(verb, value); err != nil {
			return nil, ggerrors.NewRuleExecutionError("%v", err)
		}
		return target, nil
	}, nil
}

// HeaderModify compiles "header set <key> <value...>" / "header remove
// <key>". $name in value expands against the original request regardless
// of whether target is the request or the response. Setting or removing
// the Content-Type header also keeps target's ContentType attribute in
// sync, since upstream.Proxy and the response writer read ContentType
// rather than the header map directly.
func HeaderModify(action, key, value string) (ModifyFunc, error) {
	switch action {
	case "set":
		return func(req *ggrequest.Request, target ggrequest.Mutable) (ggrequest.Mutable, error) {
			expanded, err := templateValue(value, req)
			if err != nil {
				return nil, err
			}
			target.GetHeader().Set(key, expanded)
			if isContentTypeHeader(key) {
				if err := target.SetAttr("content_type", expanded); err != nil {
					return nil, ggerrors.NewRuleExecutionError("%v", err)
				}
			}
			return target, nil
		}, nil
	case "remove":
		return func(req *ggrequest.Request, target ggrequest.Mutable) (ggrequest.Mutable, error) {
			target.GetHeader().Del(key)
			if isContentTypeHeader(key) {
				if err := target.SetAttr("content_type", ""); err != nil {
					return nil, ggerrors.NewRuleExecutionError("%v", err)
				}
			}
			return target, nil
		}, nil
	default:
		return nil, ggerrors.NewConfigError("unknown header action: %s", action)
	}
}

func isContentTypeHeader(key string) bool {
	return strings.EqualFold(key, "Content-Type")
}
