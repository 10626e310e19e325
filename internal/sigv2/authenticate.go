package sigv2

import (
	"time"

	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
)

// Secret is what a credential lookup needs to verify a signature: the
// shared secret and the entity it belongs to.
type Secret struct {
	Value  string
	Entity string
}

// SecretLookup resolves an AWSAccessKeyId to its Secret. A nil return means
// "unknown key".
type SecretLookup func(accessKey string) *Secret

var requiredParams = []string{
	"AWSAccessKeyId", "Signature", "SignatureMethod", "SignatureVersion", "Timestamp",
}

// Authenticate implements spec.md §4.1's Authenticator: it validates the
// required signature parameters are present, checks the timestamp window,
// looks up the access key's secret, and verifies the signature. On
// success it returns the entity that owns the credential.
func Authenticate(req *ggrequest.Request, lookup SecretLookup, threshold time.Duration, now time.Time) (string, error) {
	for _, name := range requiredParams {
		if _, ok := req.Query.Get(name); !ok {
			return "", ggerrors.NewUnauthenticatedError("missing required signature parameters")
		}
	}

	accessKey, _ := req.Query.Get("AWSAccessKeyId")
	signature, _ := req.Query.Get("Signature")
	methodName, _ := req.Query.Get("SignatureMethod")
	methodVersion, _ := req.Query.Get("SignatureVersion")
	timestampRaw, _ := req.Query.Get("Timestamp")

	method, ok := LookupMethod(methodName, methodVersion)
	if !ok {
		return "", ggerrors.NewUnauthenticatedError("invalid signature method or version")
	}

	timestamp, err := ParseTimestamp(timestampRaw)
	if err != nil {
		return "", ggerrors.NewUnauthenticatedError("bad timestamp")
	}

	var expiresPtr *time.Time
	if expiresRaw, ok := req.Query.Get("Expires"); ok {
		expires, err := ParseTimestamp(expiresRaw)
		if err != nil {
			return "", ggerrors.NewUnauthenticatedError("bad timestamp")
		}
		expiresPtr = &expires
	}

	if err := CheckTimestampWindow(now, timestamp, expiresPtr, threshold); err != nil {
		return "", err
	}

	secret := lookup(accessKey)
	if secret == nil {
		return "", ggerrors.NewUnauthenticatedError("signature mismatch")
	}

	base := BaseString(req.Method, req.Scheme, req.Host, req.Path(), req.Query)
	ok, err = Verify(base, signature, secret.Value, method)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ggerrors.NewUnauthenticatedError("signature mismatch")
	}
	return secret.Entity, nil
}
