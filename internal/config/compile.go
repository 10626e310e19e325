package config

import (
	"sync"

	"github.com/goldengate/goldengate/internal/credstore"
	"github.com/goldengate/goldengate/internal/policy"
	"github.com/goldengate/goldengate/internal/ruleengine"
	"github.com/goldengate/goldengate/internal/timelock"
)

// cachingCredLoader wraps credstore.Load with an in-process cache keyed by
// path, so a credentials file referenced by several rule lines (or several
// rulesets) is parsed once, matching ruleengine.LoadCredsFunc's documented
// contract.
type cachingCredLoader struct {
	mu    sync.Mutex
	cache map[string]*credstore.Store
}

func newCachingCredLoader() *cachingCredLoader {
	return &cachingCredLoader{cache: make(map[string]*credstore.Store)}
}

func (l *cachingCredLoader) load(path string) (*credstore.Store, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if store, ok := l.cache[path]; ok {
		return store, nil
	}
	store, err := credstore.Load(path)
	if err != nil {
		return nil, err
	}
	l.cache[path] = store
	return store, nil
}

// CompileRulesets loads the ruleset stream at rulesetPath and, if
// policyPath is non-empty, the policy stream at policyPath, then compiles
// every ruleset through a fresh registry into a ready-to-run
// []*ruleengine.Ruleset in declaration order. coord backs any "timelock"
// policy entries; pass nil if the deployment has none.
func CompileRulesets(rulesetPath, policyPath string, coord *timelock.Coordinator) ([]*ruleengine.Ruleset, error) {
	raws, err := LoadRawRulesets(rulesetPath)
	if err != nil {
		return nil, err
	}

	var policiesByRuleset map[string][]policy.Policy
	if policyPath != "" {
		policiesByRuleset, err = LoadPolicies(policyPath, coord)
		if err != nil {
			return nil, err
		}
	}

	loader := newCachingCredLoader()
	reg := ruleengine.NewRegistry(loader.load)

	rulesets := make([]*ruleengine.Ruleset, 0, len(raws))
	for _, raw := range raws {
		rs, err := ruleengine.Compile(reg, raw, policiesByRuleset[raw.Name])
		if err != nil {
			return nil, err
		}
		rulesets = append(rulesets, rs)
	}
	return rulesets, nil
}
