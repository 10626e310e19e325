// Package policy implements the matcher/policy model of spec.md §4.5: a
// composable boolean matcher over (entity, request), and policies
// (allow/deny/time-lock) that resolve to a grant decision for the first
// matcher that applies. Grounded on original_source's rules/aws.py
// AWSAction-style attribute and the teacher's internal/iam policy
// evaluator (matcher composition, first-match-wins resolution).
package policy

import (
	"context"
	"time"

	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/goldengate/goldengate/internal/timelock"
)

// Matcher is a pure predicate over (entity, request).
type Matcher interface {
	Matches(entity string, req *ggrequest.Request) bool
}

// Always matches every (entity, request) pair.
type Always struct{}

func (Always) Matches(entity string, req *ggrequest.Request) bool { return true }

// Entity matches when the entity is a member of the configured set.
type Entity struct {
	Entities map[string]bool
}

// NewEntity builds an Entity matcher from a list of entity names.
func NewEntity(entities ...string) Entity {
	set := make(map[string]bool, len(entities))
	for _, e := range entities {
		set[e] = true
	}
	return Entity{Entities: set}
}

func (m Entity) Matches(entity string, req *ggrequest.Request) bool {
	return m.Entities[entity]
}

// AWSAction matches when the request's "Action" query parameter equals A.
type AWSAction struct {
	Action string
}

func (m AWSAction) Matches(entity string, req *ggrequest.Request) bool {
	return req.AWSAction() == m.Action
}

// All matches iff every child matches (vacuously true for zero children,
// per spec.md §8's "All([]) = true").
type All struct {
	Children []Matcher
}

func (m All) Matches(entity string, req *ggrequest.Request) bool {
	for _, c := range m.Children {
		if !c.Matches(entity, req) {
			return false
		}
	}
	return true
}

// Any matches iff at least one child matches (vacuously false for zero
// children, per spec.md §8's "Any([]) = false").
type Any struct {
	Children []Matcher
}

func (m Any) Matches(entity string, req *ggrequest.Request) bool {
	for _, c := range m.Children {
		if c.Matches(entity, req) {
			return true
		}
	}
	return false
}

// Not inverts its child. Not(Not(M)) is equivalent to M (spec.md §8) since
// it holds no state of its own.
type Not struct {
	Child Matcher
}

func (m Not) Matches(entity string, req *ggrequest.Request) bool {
	return !m.Child.Matches(entity, req)
}

// Decision is the outcome of resolving a policy for a request: either a
// fixed grant/deny, or a deferred decision requiring a time-lock Grant
// call (see internal/timelock).
type Decision int

const (
	Deny Decision = iota
	Allow
	Deferred
)

// Policy pairs a Matcher with how it resolves once matched.
type Policy interface {
	Matcher() Matcher
	// Decide returns this policy's decision kind. TimeLockPolicy
	// implementations return Deferred; callers must then invoke the
	// associated time-lock coordinator to get the final true/false.
	Decide() Decision
}

// AllowPolicy always grants once its matcher applies.
type AllowPolicy struct {
	M Matcher
}

func (p AllowPolicy) Matcher() Matcher  { return p.M }
func (p AllowPolicy) Decide() Decision  { return Allow }

// DenyPolicy always denies once its matcher applies.
type DenyPolicy struct {
	M Matcher
}

func (p DenyPolicy) Matcher() Matcher { return p.M }
func (p DenyPolicy) Decide() Decision { return Deny }

// TimeLockPolicy defers its grant decision to a time-lock coordinator: a
// matched request is queued, interested parties are notified with a
// cancellation link, and the final true/false is only known once the
// lock duration elapses or the grant is cancelled. Decide reports
// Deferred so a caller resolving a policy knows to call Grant rather than
// trust a fixed Allow/Deny. Grounded on original_source's
// goldengate/policy.py TimeLockPolicy.
type TimeLockPolicy struct {
	M           Matcher
	Duration    time.Duration
	Template    string
	Recipients  []string
	Coordinator *timelock.Coordinator
}

func (p *TimeLockPolicy) Matcher() Matcher { return p.M }
func (p *TimeLockPolicy) Decide() Decision { return Deferred }

// Grant queues req under this policy's lock duration and blocks (without
// tying up an OS thread -- see internal/timelock) until it resolves.
// onQueued, if non-nil, receives the grant's id as soon as it is queued
// (before the wait begins) so a caller can surface a cancellation link.
func (p *TimeLockPolicy) Grant(ctx context.Context, entity string, req *ggrequest.Request, onQueued func(id string)) (bool, string, error) {
	return p.Coordinator.Request(ctx, req, timelock.Grant{
		Entity:     entity,
		Duration:   p.Duration,
		Template:   p.Template,
		Recipients: p.Recipients,
	}, onQueued)
}
