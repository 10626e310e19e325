// Package rules implements the match/filter/modify rule library described
// in spec.md §4.3, grounded on original_source's rules/{match,filter,
// modify,aws}.py. Each rule is compiled into a plain closure; internal/
// ruleengine owns tokenizing rule lines and looking verbs up in a registry.
package rules

import (
	"net"
	"regexp"

	"github.com/goldengate/goldengate/internal/ggerrors"
)

// MatchType is one of the four predicates a RequestMatchRule or
// HeaderMatchRule can apply to an attribute value.
type MatchType string

const (
	MatchIs     MatchType = "is"
	MatchIn     MatchType = "in"
	MatchRegex  MatchType = "regex"
	MatchSubnet MatchType = "subnet"
)

// matchFunc evaluates value against params for one MatchType.
type matchFunc func(value string, params []string) (bool, error)

var matchFuncs = map[MatchType]matchFunc{
	MatchIs:     matchIs,
	MatchIn:     matchIn,
	MatchRegex:  matchRegexFn,
	MatchSubnet: matchSubnet,
}

// LookupMatchType validates a matchtype name and returns its evaluator.
func LookupMatchType(name string) (matchFunc, error) {
	fn, ok := matchFuncs[MatchType(name)]
	if !ok {
		return nil, ggerrors.NewConfigError("unknown match type: %s", name)
	}
	return fn, nil
}

func matchIs(value string, params []string) (bool, error) {
	if len(params) < 1 {
		return false, ggerrors.NewConfigError("match type 'is' requires one parameter")
	}
	return value == params[0], nil
}

func matchIn(value string, params []string) (bool, error) {
	for _, p := range params {
		if value == p {
			return true, nil
		}
	}
	return false, nil
}

func matchRegexFn(value string, params []string) (bool, error) {
	if len(params) < 1 {
		return false, ggerrors.NewConfigError("match type 'regex' requires one parameter")
	}
	re, err := regexp.Compile(params[0])
	if err != nil {
		return false, ggerrors.NewConfigError("invalid regex %q: %v", params[0], err)
	}
	loc := re.FindStringIndex(value)
	return loc != nil && loc[0] == 0, nil
}

func matchSubnet(value string, params []string) (bool, error) {
	ip := net.ParseIP(value)
	if ip == nil {
		return false, nil
	}
	for _, cidr := range params {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return false, ggerrors.NewConfigError("invalid subnet %q: %v", cidr, err)
		}
		if network.Contains(ip) {
			return true, nil
		}
	}
	return false, nil
}
