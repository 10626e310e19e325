// Package credstore loads and looks up the AWS-style credentials (access
// key, secret, owning entity) that sigv2.Authenticate and the aws_signature
// / aws_sign rules need, grounded on original_source's rules/aws.py
// (multi-document YAML creds files keyed by "key"/"secret"/"name") and the
// teacher's internal/auth credentials map.
package credstore

import (
	"fmt"
	"io"
	"os"

	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/sigv2"
	"gopkg.in/yaml.v3"
)

// Credential is one entry from a credentials file. The secret is kept in
// plaintext in memory: SigV2 verification recomputes an HMAC over the
// request with it, which requires the actual secret, not a one-way hash of
// it (bcrypt is used elsewhere, for the admin surface's bearer token, where
// only equality-checking is needed).
type Credential struct {
	Key    string `yaml:"key"`
	Secret string `yaml:"secret"`
	Entity string `yaml:"name"`
}

// Store is a read-only, in-memory lookup table from access key to
// Credential, built once at startup.
type Store struct {
	byKey map[string]Credential
}

// Load reads a multi-document YAML stream (each document a Credential) from
// path and builds a Store. Duplicate keys are rejected as a ConfigError,
// matching the teacher's fail-fast startup posture for malformed config.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ggerrors.NewConfigError("unable to load credentials from %s: %v", path, err)
	}
	defer f.Close()
	return LoadReader(f, path)
}

// LoadReader is Load, reading from an already-open io.Reader. name is used
// only to annotate error messages.
func LoadReader(r io.Reader, name string) (*Store, error) {
	dec := yaml.NewDecoder(r)
	byKey := make(map[string]Credential)

	for {
		var cred Credential
		err := dec.Decode(&cred)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ggerrors.NewConfigError("unable to parse credentials from %s: %v", name, err)
		}
		if cred.Key == "" {
			return nil, ggerrors.NewConfigError("credential in %s is missing a key", name)
		}
		if cred.Secret == "" {
			return nil, ggerrors.NewConfigError("credential %q in %s has no secret", cred.Key, name)
		}
		if _, dup := byKey[cred.Key]; dup {
			return nil, ggerrors.NewConfigError("duplicate access key %q in %s", cred.Key, name)
		}
		byKey[cred.Key] = cred
	}

	return &Store{byKey: byKey}, nil
}

// ForKey returns the Credential registered under accessKey, or nil if none
// exists. Mirrors the original's Credentials.for_key.
func (s *Store) ForKey(accessKey string) *Credential {
	if cred, ok := s.byKey[accessKey]; ok {
		c := cred
		return &c
	}
	return nil
}

// Len reports how many credentials are loaded.
func (s *Store) Len() int {
	return len(s.byKey)
}

// SecretLookup adapts a Store into a sigv2.SecretLookup, the form
// sigv2.Authenticate expects.
func (s *Store) SecretLookup() sigv2.SecretLookup {
	return func(accessKey string) *sigv2.Secret {
		cred := s.ForKey(accessKey)
		if cred == nil {
			return nil
		}
		return &sigv2.Secret{Value: cred.Secret, Entity: cred.Entity}
	}
}

// ForKeyAndSecret resolves a single credential by access key, returning an
// error instead of nil when missing -- the shape aws_sign's modify rule
// needs at configuration time (it requires a specific key be present).
func (s *Store) ForKeyAndSecret(accessKey string) (*Credential, error) {
	cred := s.ForKey(accessKey)
	if cred == nil {
		return nil, fmt.Errorf("key %s is missing from credentials", accessKey)
	}
	return cred, nil
}
