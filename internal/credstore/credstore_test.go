package credstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoCreds = `
name: example@example.com
key: Nj4jT6JyEgMtDUgU
secret: yPhnQEuB9CkksqXb6RaggqTkNEBEdpJC
---
name: example2@example.com
key: us6LJYaJqag67C9G
secret: ph99WLvGy9jPvvWW6L3ELncfXCNzQlHr
`

func TestLoadReaderParsesMultiDocument(t *testing.T) {
	store, err := LoadReader(strings.NewReader(twoCreds), "test.creds")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	cred := store.ForKey("Nj4jT6JyEgMtDUgU")
	require.NotNil(t, cred)
	assert.Equal(t, "example@example.com", cred.Entity)
	assert.Equal(t, "yPhnQEuB9CkksqXb6RaggqTkNEBEdpJC", cred.Secret)
}

func TestForKeyUnknownReturnsNil(t *testing.T) {
	store, err := LoadReader(strings.NewReader(twoCreds), "test.creds")
	require.NoError(t, err)
	assert.Nil(t, store.ForKey("nonexistent"))
}

func TestDuplicateKeyRejected(t *testing.T) {
	dup := `
name: a@example.com
key: SAMEKEY
secret: secretone
---
name: b@example.com
key: SAMEKEY
secret: secrettwo
`
	_, err := LoadReader(strings.NewReader(dup), "dup.creds")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate access key")
}

func TestMissingSecretRejected(t *testing.T) {
	missing := `
name: a@example.com
key: SOMEKEY
`
	_, err := LoadReader(strings.NewReader(missing), "missing.creds")
	require.Error(t, err)
}

func TestSecretLookupAdaptsToSigv2(t *testing.T) {
	store, err := LoadReader(strings.NewReader(twoCreds), "test.creds")
	require.NoError(t, err)

	lookup := store.SecretLookup()
	secret := lookup("Nj4jT6JyEgMtDUgU")
	require.NotNil(t, secret)
	assert.Equal(t, "example@example.com", secret.Entity)
	assert.Equal(t, "yPhnQEuB9CkksqXb6RaggqTkNEBEdpJC", secret.Value)

	assert.Nil(t, lookup("unknown"))
}
