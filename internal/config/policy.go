package config

import (
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/policy"
	"github.com/goldengate/goldengate/internal/timelock"
)

// matcherDoc is the YAML encoding of a policy.Matcher tree. Exactly one of
// its fields should be set per document node; compile walks it the same
// way policy.All/Any/Not compose in Go.
type matcherDoc struct {
	Always    bool          `yaml:"always,omitempty"`
	Entity    []string      `yaml:"entity,omitempty"`
	AWSAction string        `yaml:"aws_action,omitempty"`
	All       []matcherDoc  `yaml:"all,omitempty"`
	Any       []matcherDoc  `yaml:"any,omitempty"`
	Not       *matcherDoc   `yaml:"not,omitempty"`
}

// compile converts a matcherDoc into a policy.Matcher.
func (m matcherDoc) compile() (policy.Matcher, error) {
	switch {
	case m.Always:
		return policy.Always{}, nil
	case len(m.Entity) > 0:
		return policy.NewEntity(m.Entity...), nil
	case m.AWSAction != "":
		return policy.AWSAction{Action: m.AWSAction}, nil
	case len(m.All) > 0:
		children, err := compileMatchers(m.All)
		if err != nil {
			return nil, err
		}
		return policy.All{Children: children}, nil
	case len(m.Any) > 0:
		children, err := compileMatchers(m.Any)
		if err != nil {
			return nil, err
		}
		return policy.Any{Children: children}, nil
	case m.Not != nil:
		child, err := m.Not.compile()
		if err != nil {
			return nil, err
		}
		return policy.Not{Child: child}, nil
	default:
		return nil, ggerrors.NewConfigError("policy matcher document has no recognized field set")
	}
}

func compileMatchers(docs []matcherDoc) ([]policy.Matcher, error) {
	out := make([]policy.Matcher, 0, len(docs))
	for _, d := range docs {
		m, err := d.compile()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// policyEntryDoc is one entry in a ruleset's policy list: a matcher paired
// with how it resolves once matched.
type policyEntryDoc struct {
	Action     string     `yaml:"action"` // "allow", "deny", "timelock"
	Matcher    matcherDoc `yaml:"matcher"`
	Duration   string     `yaml:"duration,omitempty"`
	Template   string     `yaml:"template,omitempty"`
	Recipients []string   `yaml:"recipients,omitempty"`
}

// policyDoc is one YAML document in a policy stream: the ruleset it
// governs, plus its ordered policy list (first matching entry wins, per
// spec.md §4.5's policy_for).
type policyDoc struct {
	Ruleset  string           `yaml:"ruleset"`
	Policies []policyEntryDoc `yaml:"policies"`
}

// LoadPolicies reads a multi-document YAML policy stream from path and
// returns the compiled policy list for each named ruleset. coord backs any
// "timelock" entries; it may be nil if no ruleset's policy list uses one
// (compilePolicyEntry returns a ConfigError in that case instead of a nil-pointer
// panic at request time).
func LoadPolicies(path string, coord *timelock.Coordinator) (map[string][]policy.Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ggerrors.NewConfigError("unable to load policies from %s: %v", path, err)
	}
	defer f.Close()
	return LoadPoliciesReader(f, path, coord)
}

// LoadPoliciesReader is LoadPolicies reading from an already-open
// io.Reader; name only annotates error messages.
func LoadPoliciesReader(r io.Reader, name string, coord *timelock.Coordinator) (map[string][]policy.Policy, error) {
	dec := yaml.NewDecoder(r)
	out := make(map[string][]policy.Policy)

	for {
		var doc policyDoc
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ggerrors.NewConfigError("unable to parse policies from %s: %v", name, err)
		}
		if doc.Ruleset == "" {
			return nil, ggerrors.NewConfigError("policy document in %s is missing a \"ruleset\" name", name)
		}

		policies := make([]policy.Policy, 0, len(doc.Policies))
		for _, entry := range doc.Policies {
			p, err := compilePolicyEntry(entry, coord)
			if err != nil {
				return nil, ggerrors.NewConfigError("ruleset %q in %s: %v", doc.Ruleset, name, err)
			}
			policies = append(policies, p)
		}
		out[doc.Ruleset] = policies
	}

	return out, nil
}

func compilePolicyEntry(entry policyEntryDoc, coord *timelock.Coordinator) (policy.Policy, error) {
	m, err := entry.Matcher.compile()
	if err != nil {
		return nil, err
	}

	switch entry.Action {
	case "allow":
		return policy.AllowPolicy{M: m}, nil
	case "deny":
		return policy.DenyPolicy{M: m}, nil
	case "timelock":
		if coord == nil {
			return nil, ggerrors.NewConfigError("\"timelock\" policy entry requires a time-lock coordinator")
		}
		if entry.Duration == "" {
			return nil, ggerrors.NewConfigError("\"timelock\" policy entry requires a \"duration\"")
		}
		duration, err := time.ParseDuration(entry.Duration)
		if err != nil {
			return nil, ggerrors.NewConfigError("invalid timelock duration %q: %v", entry.Duration, err)
		}
		if entry.Template == "" {
			return nil, ggerrors.NewConfigError("\"timelock\" policy entry requires a \"template\"")
		}
		return &policy.TimeLockPolicy{
			M:           m,
			Duration:    duration,
			Template:    entry.Template,
			Recipients:  entry.Recipients,
			Coordinator: coord,
		}, nil
	default:
		return nil, ggerrors.NewConfigError("unknown policy action: %q", entry.Action)
	}
}
