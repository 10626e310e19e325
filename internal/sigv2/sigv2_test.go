package sigv2

import (
	"testing"
	"time"

	"github.com/goldengate/goldengate/internal/ggrequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseStringCanonicalization(t *testing.T) {
	q := ggrequest.Query{
		{Key: "Action", Value: "ListUsers"},
		{Key: "Version", Value: "2010-05-08"},
		{Key: "AWSAccessKeyId", Value: "AKID"},
		{Key: "SignatureMethod", Value: "HmacSHA256"},
		{Key: "SignatureVersion", Value: "2"},
		{Key: "Timestamp", Value: "2011-01-01T00:00:00"},
	}

	base := BaseString("get", "https", "iam.amazonaws.com", "", q)
	lines := []string{
		"GET",
		"iam.amazonaws.com",
		"/",
	}
	for _, want := range lines {
		assert.Contains(t, base, want)
	}
	assert.Equal(t, "GET\niam.amazonaws.com\n/\nAWSAccessKeyId=AKID&Action=ListUsers&SignatureMethod=HmacSHA256&SignatureVersion=2&Timestamp=2011-01-01T00%3A00%3A00&Version=2010-05-08", base)
}

func TestHostPortStripping(t *testing.T) {
	assert.Equal(t, "example.com", normalizedHost("http", "example.com:80"))
	assert.Equal(t, "example.com", normalizedHost("https", "example.com:443"))
	assert.Equal(t, "example.com:8080", normalizedHost("http", "example.com:8080"))
	assert.Equal(t, "example.com:443", normalizedHost("http", "example.com:443"))
}

func TestEmptyPathBecomesSlash(t *testing.T) {
	assert.Equal(t, "/", normalizedPath(""))
	assert.Equal(t, "/foo", normalizedPath("/foo"))
}

func TestRoundTripSignature(t *testing.T) {
	q := ggrequest.Query{
		{Key: "Action", Value: "ListUsers"},
		{Key: "AWSAccessKeyId", Value: "AKID"},
	}
	base := BaseString("GET", "https", "example.com", "/", q)

	sig, err := Sign(base, "supersecret", HmacSHA256)
	require.NoError(t, err)

	ok, err := Verify(base, sig, "supersecret", HmacSHA256)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMutatingParameterBreaksVerification(t *testing.T) {
	q := ggrequest.Query{{Key: "Action", Value: "ListUsers"}}
	base := BaseString("GET", "https", "example.com", "/", q)
	sig, err := Sign(base, "supersecret", HmacSHA256)
	require.NoError(t, err)

	mutated := ggrequest.Query{{Key: "Action", Value: "DeleteUsers"}}
	mutatedBase := BaseString("GET", "https", "example.com", "/", mutated)

	ok, err := Verify(mutatedBase, sig, "supersecret", HmacSHA256)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignatureOrderInvariant(t *testing.T) {
	q1 := ggrequest.Query{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}
	q2 := ggrequest.Query{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}

	assert.Equal(t,
		BaseString("GET", "http", "example.com", "/", q1),
		BaseString("GET", "http", "example.com", "/", q2))
}

func TestMultiValuedParameterOrdering(t *testing.T) {
	q := ggrequest.Query{
		{Key: "k", Value: "z"},
		{Key: "k", Value: "a"},
	}
	assert.Equal(t, "k=a&k=z", normalizedParameters(q))
}

func TestSignatureExcludedFromBaseString(t *testing.T) {
	q := ggrequest.Query{
		{Key: "Action", Value: "ListUsers"},
		{Key: "Signature", Value: "shouldnotappear"},
	}
	base := BaseString("GET", "http", "example.com", "/", q)
	assert.NotContains(t, base, "shouldnotappear")
}

func TestTimestampWindowBoundaries(t *testing.T) {
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, CheckTimestampWindow(now, now, nil, DefaultTimestampThreshold))
	assert.Error(t, CheckTimestampWindow(now, now.Add(time.Second), nil, DefaultTimestampThreshold))
	assert.NoError(t, CheckTimestampWindow(now, now.Add(-DefaultTimestampThreshold), nil, DefaultTimestampThreshold))
	assert.Error(t, CheckTimestampWindow(now, now.Add(-DefaultTimestampThreshold-time.Second), nil, DefaultTimestampThreshold))
}

func TestAuthenticateRoundTrip(t *testing.T) {
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	req := &ggrequest.Request{
		Method: "GET",
		Scheme: "https",
		Host:   "example.com",
		Query: ggrequest.Query{
			{Key: "Action", Value: "ListUsers"},
			{Key: "AWSAccessKeyId", Value: "AKID"},
			{Key: "SignatureMethod", Value: "HmacSHA256"},
			{Key: "SignatureVersion", Value: "2"},
			{Key: "Timestamp", Value: GenerateTimestamp(now)},
		},
	}
	base := BaseString(req.Method, req.Scheme, req.Host, req.Path(), req.Query)
	sig, err := Sign(base, "secret", HmacSHA256)
	require.NoError(t, err)
	req.Query.Set("Signature", sig)

	lookup := func(key string) *Secret {
		if key == "AKID" {
			return &Secret{Value: "secret", Entity: "alice@example.com"}
		}
		return nil
	}

	entity, err := Authenticate(req, lookup, DefaultTimestampThreshold, now)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", entity)
}

func TestAuthenticateMissingParams(t *testing.T) {
	req := &ggrequest.Request{Method: "GET", Scheme: "https", Host: "example.com"}
	_, err := Authenticate(req, func(string) *Secret { return nil }, DefaultTimestampThreshold, time.Now())
	require.Error(t, err)
}
