// Package sigv2 implements AWS Signature Version 2: canonicalization,
// HMAC-SHA1/HMAC-SHA256 signing, and verification, grounded on
// goldengate's original auth/aws.py and rules/aws.py.
package sigv2

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"sort"
	"strings"
	"time"

	"github.com/goldengate/goldengate/internal/ggerrors"
	"github.com/goldengate/goldengate/internal/ggrequest"
)

// TimestampFormat is the layout AWS SigV2 timestamps are expected in.
const TimestampFormat = "2006-01-02T15:04:05"

// DefaultTimestampThreshold is the default window (seconds) within which a
// Timestamp must fall relative to now.
const DefaultTimestampThreshold = 300 * time.Second

// Method names a signature algorithm; only HmacSHA1 and HmacSHA256 version
// "2" are recognized.
type Method struct {
	Name    string
	Version string
}

var (
	HmacSHA1   = Method{Name: "HmacSHA1", Version: "2"}
	HmacSHA256 = Method{Name: "HmacSHA256", Version: "2"}
)

// LookupMethod resolves a (name, version) pair to a known Method.
func LookupMethod(name, version string) (Method, bool) {
	for _, m := range []Method{HmacSHA1, HmacSHA256} {
		if m.Name == name && m.Version == version {
			return m, true
		}
	}
	return Method{}, false
}

// escape percent-encodes s per AWS's quoting rule: alphanumerics plus
// "-_~" are left unescaped, everything else (including '.') is escaped.
// This matches the original's `urllib.quote(s, safe='-_~')`.
func escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			b.WriteByte('%')
			b.WriteByte(upperHex(c >> 4))
			b.WriteByte(upperHex(c & 0x0f))
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

func upperHex(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

// normalizedHost returns host.lower(), stripping a trailing ":80" for http
// or ":443" for https.
func normalizedHost(scheme, host string) string {
	host = strings.ToLower(host)
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		return host[:len(host)-len(":80")]
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		return host[:len(host)-len(":443")]
	}
	return host
}

// normalizedPath returns path, or "/" if path is empty.
func normalizedPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// normalizedParameters returns every query parameter except Signature,
// sorted by key then by value within a key, percent-encoded and joined
// "k=v" with "&".
func normalizedParameters(q ggrequest.Query) string {
	type kv struct{ k, v string }
	var pairs []kv
	for _, p := range q {
		if p.Key == "Signature" {
			continue
		}
		pairs = append(pairs, kv{p.Key, p.Value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, escape(p.k)+"="+escape(p.v))
	}
	return strings.Join(parts, "&")
}

// BaseString builds the four-line canonical base string described in
// spec.md §4.1: method, normalized host, normalized path, normalized
// parameters.
func BaseString(method, scheme, host, path string, q ggrequest.Query) string {
	return strings.Join([]string{
		strings.ToUpper(method),
		normalizedHost(scheme, host),
		normalizedPath(path),
		normalizedParameters(q),
	}, "\n")
}

// Sign computes Base64(HMAC(secret, base, H)) for the given Method.
func Sign(base, secret string, method Method) (string, error) {
	var mac hash.Hash
	switch method.Name {
	case "HmacSHA1":
		mac = hmac.New(sha1.New, []byte(secret))
	case "HmacSHA256":
		mac = hmac.New(sha256.New, []byte(secret))
	default:
		return "", ggerrors.NewUnauthenticatedError("invalid signature method or version")
	}
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the expected signature for base under secret and
// method, and compares it to signature using a constant-time comparison
// (per §9, replacing the original's non-constant-time rotation trick).
func Verify(base, signature, secret string, method Method) (bool, error) {
	expected, err := Sign(base, secret, method)
	if err != nil {
		return false, err
	}
	if len(expected) != len(signature) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1, nil
}

// ParseTimestamp parses an AWS SigV2 Timestamp/Expires value.
func ParseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(TimestampFormat, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// CheckTimestampWindow enforces spec.md §4.1's timestamp window: not in
// the future, not older than threshold, and (if present) Expires not
// already in the past.
func CheckTimestampWindow(now time.Time, timestamp time.Time, expires *time.Time, threshold time.Duration) error {
	if timestamp.After(now) {
		return ggerrors.NewUnauthenticatedError("bad timestamp")
	}
	if timestamp.Before(now.Add(-threshold)) {
		return ggerrors.NewUnauthenticatedError("bad timestamp")
	}
	if expires != nil && expires.Before(now) {
		return ggerrors.NewUnauthenticatedError("bad timestamp")
	}
	return nil
}

// GenerateTimestamp formats now in the AWS SigV2 Timestamp layout.
func GenerateTimestamp(now time.Time) string {
	return now.UTC().Format(TimestampFormat)
}

// SignedQuery rebuilds q with AWSAccessKeyId/SignatureVersion/
// SignatureMethod/Timestamp set and a freshly computed Signature appended,
// discarding any prior Signature. method/scheme/host/path describe the
// request the signature is computed over.
func SignedQuery(method, scheme, host, path string, q ggrequest.Query, accessKey, secret string, sigMethod Method, now time.Time) (ggrequest.Query, error) {
	signed := q.Clone()
	signed.Set("AWSAccessKeyId", accessKey)
	signed.Set("SignatureVersion", sigMethod.Version)
	signed.Set("SignatureMethod", sigMethod.Name)
	signed.Set("Timestamp", GenerateTimestamp(now))
	signed.Del("Signature")

	base := BaseString(method, scheme, host, path, signed)
	signature, err := Sign(base, secret, sigMethod)
	if err != nil {
		return nil, err
	}
	signed.Set("Signature", signature)
	return signed, nil
}
