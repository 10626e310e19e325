// Package ruleengine compiles textual rule lines into runnable stages and
// executes the six-stage pipeline (match, filter, modify_request,
// modify_response, audit_request, audit_response) described in spec.md
// §4.4, grounded on original_source's goldengate/__init__.py RuleEngine
// class.
package ruleengine

import "strings"

const escapeSentinel = "\x00"

// Tokenize splits a rule line on ASCII spaces, honoring "\ " as an escaped
// literal space within a token -- mirrors
// rule.replace('\ ', '\x00').split(' ') then undoing the substitution per
// token.
func Tokenize(line string) []string {
	masked := strings.ReplaceAll(line, `\ `, escapeSentinel)
	rawTokens := strings.Split(masked, " ")
	tokens := make([]string, 0, len(rawTokens))
	for _, t := range rawTokens {
		if t == "" {
			continue
		}
		tokens = append(tokens, strings.ReplaceAll(t, escapeSentinel, " "))
	}
	return tokens
}

// ParsedRule is one tokenized rule line split into positional args and
// key=value kwargs (kwargs split on the first "=").
type ParsedRule struct {
	Tokens   []string
	Args     []string
	Kwargs   map[string]string
}

// Parse tokenizes line and splits tokens into positional args vs kv kwargs.
func Parse(line string) ParsedRule {
	tokens := Tokenize(line)
	args := make([]string, 0, len(tokens))
	kwargs := make(map[string]string)
	for _, t := range tokens {
		if i := strings.IndexByte(t, '='); i >= 0 {
			kwargs[t[:i]] = t[i+1:]
		} else {
			args = append(args, t)
		}
	}
	return ParsedRule{Tokens: tokens, Args: args, Kwargs: kwargs}
}
