package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sign computes a Twilio webhook signature the way Twilio documents it.
func sign(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newSignedRequest(form url.Values, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/voice/incoming", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

func TestSignatureValidator(t *testing.T) {
	const token = "secret-token"
	const publicURL = "https://example.com/voice/incoming"
	form := url.Values{"To": {"+33100000000"}, "CallSid": {"CA123"}, "From": {"+33612345678"}}

	v := NewSignatureValidator(token)

	assert.True(t, v.Valid(newSignedRequest(form, sign(token, publicURL, form)), publicURL))
	assert.False(t, v.Valid(newSignedRequest(form, sign("other-token", publicURL, form)), publicURL))
	assert.False(t, v.Valid(newSignedRequest(form, sign(token, "https://evil.com/voice/incoming", form)), publicURL))
	assert.False(t, v.Valid(newSignedRequest(form, ""), publicURL))
}
