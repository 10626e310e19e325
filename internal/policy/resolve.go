package policy

import (
	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
)

// PolicyFor scans policies in order and returns the first whose matcher
// applies to (entity, req). Per spec.md §4.5, an unmatched request is a
// distinct error (AuthorizationMiss), never a default-deny or default-allow.
func PolicyFor(entity string, req *ggrequest.Request, policies []Policy) (Policy, error) {
	for _, p := range policies {
		if p.Matcher().Matches(entity, req) {
			return p, nil
		}
	}
	return nil, &ggerrors.AuthorizationMiss{Entity: entity}
}
