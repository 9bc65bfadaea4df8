package jimeng

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const (
	HeaderContentType   = "Content-Type"
	HeaderContentMD5    = "Content-MD5"
	HeaderDate          = "Date"
	HeaderUserAgent     = "User-Agent"
	HeaderAuthorization = "Authorization"

	authScheme = "HMAC-SHA256"
)

// CanonicalString builds the string-to-sign. Every line, including the
// trailing path, is newline terminated; missing headers contribute an empty line.
func CanonicalString(method, path string, headers map[string]string) string {
	var b strings.Builder
	for _, line := range []string{
		method,
		headers[HeaderContentType],
		headers[HeaderContentMD5],
		headers[HeaderDate],
		path,
	} {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Sign returns base64(HMAC-SHA256(secretKey, CanonicalString(...))).
func Sign(method, path string, headers map[string]string, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(CanonicalString(method, path, headers)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Authorization formats the header value for a computed signature.
func Authorization(accessKey, signature string) string {
	return authScheme + " " + accessKey + ":" + signature
}
