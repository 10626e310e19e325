package config

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ruleengine"
)

// rulesetDoc is the YAML shape of one ruleset document: a name plus the six
// stage keys, each an ordered list of rule lines. Mirrors the original's
// yaml.load_all over the config stream, one mapping per Ruleset.
type rulesetDoc struct {
	Name           string   `yaml:"name"`
	Match          []string `yaml:"match"`
	Filter         []string `yaml:"filter"`
	ModifyRequest  []string `yaml:"modify_request"`
	ModifyResponse []string `yaml:"modify_response"`
	AuditRequest   []string `yaml:"audit_request"`
	AuditResponse  []string `yaml:"audit_response"`
}

// LoadRawRulesets reads a multi-document YAML ruleset stream from path,
// preserving document order (a Ruleset's declaration order decides
// first-match-wins per spec.md §4.7).
func LoadRawRulesets(path string) ([]ruleengine.RawRuleset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ggerrors.NewConfigError("unable to load ruleset from %s: %v", path, err)
	}
	defer f.Close()
	return LoadRawRulesetsReader(f, path)
}

// LoadRawRulesetsReader is LoadRawRulesets reading from an already-open
// io.Reader; name only annotates error messages.
func LoadRawRulesetsReader(r io.Reader, name string) ([]ruleengine.RawRuleset, error) {
	dec := yaml.NewDecoder(r)
	var out []ruleengine.RawRuleset
	seen := make(map[string]bool)

	for {
		var doc rulesetDoc
		err := dec.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ggerrors.NewConfigError("unable to parse ruleset from %s: %v", name, err)
		}
		if doc.Name == "" {
			return nil, ggerrors.NewConfigError("ruleset in %s is missing a name", name)
		}
		if seen[doc.Name] {
			return nil, ggerrors.NewConfigError("duplicate ruleset name %q in %s", doc.Name, name)
		}
		seen[doc.Name] = true

		out = append(out, ruleengine.RawRuleset{
			Name: doc.Name,
			Stage: map[string][]string{
				ruleengine.StageMatch:          doc.Match,
				ruleengine.StageFilter:         doc.Filter,
				ruleengine.StageModifyRequest:  doc.ModifyRequest,
				ruleengine.StageModifyResponse: doc.ModifyResponse,
				ruleengine.StageAuditRequest:   doc.AuditRequest,
				ruleengine.StageAuditResponse:  doc.AuditResponse,
			},
		})
	}

	return out, nil
}
