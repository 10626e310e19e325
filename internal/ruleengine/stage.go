package ruleengine

import (
	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/goldengate/goldengate/internal/policy"
	"github.com/goldengate/goldengate/internal/rules"
)

// Stage names as they appear in a ruleset's YAML document.
const (
	StageMatch          = "match"
	StageFilter         = "filter"
	StageModifyRequest  = "modify_request"
	StageModifyResponse = "modify_response"
	StageAuditRequest   = "audit_request"
	StageAuditResponse  = "audit_response"
)

// MatchStage is a compiled "match" stage: every predicate must return true.
type MatchStage []rules.Predicate

// Evaluate implements short-circuit AND over every compiled predicate.
func (m MatchStage) Evaluate(req *ggrequest.Request) (bool, error) {
	for _, p := range m {
		ok, err := p(req)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// FilterDecision is one compiled filter rule: its action (permit/reject)
// paired with the predicate it gates.
type FilterDecision struct {
	Reject    bool
	Predicate rules.Predicate
}

// FilterStage is a compiled "filter" stage. Per spec.md §4.4 and
// original_source's RuleEngine.test_filter, the FIRST rule produces the
// decision; later rules are never evaluated. This is intentionally preserved rather
// than redesigned into an AND-of-permits/OR-of-rejects scheme -- see
// DESIGN.md's Open Question decisions.
type FilterStage []FilterDecision

// Evaluate returns whether the request should be permitted.
func (f FilterStage) Evaluate(req *ggrequest.Request) (bool, error) {
	if len(f) == 0 {
		return true, nil
	}
	first := f[0]
	result, err := first.Predicate(req)
	if err != nil {
		return false, err
	}
	if first.Reject {
		return !result, nil
	}
	return result, nil
}

// ModifyStage is a compiled modify/audit stage; modify_request/
// modify_response/audit_request/audit_response all share this type and the
// same underlying registry (spec.md §4.4).
type ModifyStage []rules.ModifyFunc

// ApplyRequest runs the stage as modify_request: each rule's output feeds
// the next, request and target are the same object.
func (m ModifyStage) ApplyRequest(req *ggrequest.Request) (*ggrequest.Request, error) {
	cur := req
	for _, fn := range m {
		out, err := fn(cur, cur)
		if err != nil {
			return nil, err
		}
		r, ok := out.(*ggrequest.Request)
		if !ok {
			return nil, ggerrors.NewRuleExecutionError("modify_request rule did not return a request")
		}
		cur = r
	}
	return cur, nil
}

// ApplyResponse runs the stage as modify_response: req is the fixed
// original inbound request (used only for "$name" template resolution),
// resp threads through each rule in turn.
func (m ModifyStage) ApplyResponse(req *ggrequest.Request, resp *ggrequest.Response) (*ggrequest.Response, error) {
	cur := resp
	for _, fn := range m {
		out, err := fn(req, cur)
		if err != nil {
			return nil, err
		}
		r, ok := out.(*ggrequest.Response)
		if !ok {
			return nil, ggerrors.NewRuleExecutionError("modify_response rule did not return a response")
		}
		cur = r
	}
	return cur, nil
}

// RunAuditRequest invokes the stage for side effects only; the request is
// returned unchanged regardless of what the rules do to their copy.
func (m ModifyStage) RunAuditRequest(req *ggrequest.Request) error {
	for _, fn := range m {
		if _, err := fn(req, req); err != nil {
			return err
		}
	}
	return nil
}

// RunAuditResponse is RunAuditRequest's response-side counterpart.
func (m ModifyStage) RunAuditResponse(req *ggrequest.Request, resp *ggrequest.Response) error {
	for _, fn := range m {
		if _, err := fn(req, resp); err != nil {
			return err
		}
	}
	return nil
}

// Ruleset is one compiled configuration document: a match stage, a filter
// stage, and the four modify/audit stages, corresponding 1:1 to a single
// YAML document in the config file.
type Ruleset struct {
	Name           string
	Match          MatchStage
	Filter         FilterStage
	ModifyRequest  ModifyStage
	ModifyResponse ModifyStage
	AuditRequest   ModifyStage
	AuditResponse  ModifyStage

	// Policies authorizes Request.Entity once the filter stage has
	// passed (aws_signature having populated it). Resolved with
	// policy.PolicyFor; empty means every filtered-through request is
	// authorized, matching a ruleset that never references the
	// matcher/policy layer at all.
	Policies []policy.Policy
}

// RawRuleset is a Ruleset before compilation: stage name -> ordered rule
// lines, exactly the shape one YAML document in the config file decodes
// into.
type RawRuleset struct {
	Name  string
	Stage map[string][]string
}

// Compile builds a Ruleset from a RawRuleset using reg to resolve verbs.
// Compile does not require a match or a filter stage: an absent or empty
// match stage matches everything, per MatchStage.Evaluate's
// vacuous-AND-true, and an absent or empty filter stage permits
// everything, per FilterStage.Evaluate's empty case.
func Compile(reg *Registry, raw RawRuleset, policies []policy.Policy) (*Ruleset, error) {
	rs := &Ruleset{Name: raw.Name, Policies: policies}

	for _, line := range raw.Stage[StageMatch] {
		p, err := reg.compileMatch(line)
		if err != nil {
			return nil, err
		}
		rs.Match = append(rs.Match, p)
	}

	for _, line := range raw.Stage[StageFilter] {
		d, err := reg.compileFilter(line)
		if err != nil {
			return nil, err
		}
		rs.Filter = append(rs.Filter, d)
	}

	for _, line := range raw.Stage[StageModifyRequest] {
		m, err := reg.compileModify(line)
		if err != nil {
			return nil, err
		}
		rs.ModifyRequest = append(rs.ModifyRequest, m)
	}
	for _, line := range raw.Stage[StageModifyResponse] {
		m, err := reg.compileModify(line)
		if err != nil {
			return nil, err
		}
		rs.ModifyResponse = append(rs.ModifyResponse, m)
	}
	for _, line := range raw.Stage[StageAuditRequest] {
		m, err := reg.compileModify(line)
		if err != nil {
			return nil, err
		}
		rs.AuditRequest = append(rs.AuditRequest, m)
	}
	for _, line := range raw.Stage[StageAuditResponse] {
		m, err := reg.compileModify(line)
		if err != nil {
			return nil, err
		}
		rs.AuditResponse = append(rs.AuditResponse, m)
	}

	return rs, nil
}

func (r *Registry) compileMatch(line string) (rules.Predicate, error) {
	parsed := Parse(line)
	if len(parsed.Args) < 1 {
		return nil, ggerrors.NewConfigError("empty match rule")
	}
	verb := parsed.Args[0]
	ctor, ok := r.match[verb]
	if !ok {
		return nil, ggerrors.NewConfigError("unknown verb: %s", verb)
	}
	return ctor(parsed.Args[1:], parsed.Kwargs)
}

func (r *Registry) compileFilter(line string) (FilterDecision, error) {
	parsed := Parse(line)
	if len(parsed.Args) < 2 {
		return FilterDecision{}, ggerrors.NewConfigError("filter rule requires an action and a verb")
	}
	action := parsed.Args[0]
	verb := parsed.Args[1]
	var reject bool
	switch action {
	case "permit":
		reject = false
	case "reject":
		reject = true
	default:
		return FilterDecision{}, ggerrors.NewConfigError("unknown filter action: %s", action)
	}
	ctor, ok := r.filter[verb]
	if !ok {
		return FilterDecision{}, ggerrors.NewConfigError("unknown verb: %s", verb)
	}
	predicate, err := ctor(parsed.Args[2:], parsed.Kwargs)
	if err != nil {
		return FilterDecision{}, err
	}
	return FilterDecision{Reject: reject, Predicate: predicate}, nil
}

func (r *Registry) compileModify(line string) (rules.ModifyFunc, error) {
	parsed := Parse(line)
	if len(parsed.Args) < 1 {
		return nil, ggerrors.NewConfigError("empty modify rule")
	}
	verb := parsed.Args[0]
	ctor, ok := r.modify[verb]
	if !ok {
		return nil, ggerrors.NewConfigError("unknown verb: %s", verb)
	}
	return ctor(parsed.Args[1:], parsed.Kwargs)
}
