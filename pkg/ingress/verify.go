package ingress

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// VerifyConfig selects which checks run on inbound requests. Empty fields
// disable their check.
type VerifyConfig struct {
	// HMACSecret signs request bodies; HMACHeader carries the base64
	// signature (default x-signature).
	HMACSecret string
	HMACHeader string

	// Bearer is compared against the Authorization header.
	Bearer string

	// WebexHeader carries the hex signature on Webex requests (default
	// X-Webex-Signature); WebexAlgo is "sha1" or "sha256" when the header
	// value carries no algorithm prefix.
	WebexHeader string
	WebexAlgo   string
}

// ErrUnauthorized is returned for any failed verification.
var ErrUnauthorized = errors.New("unauthorized")

// VerifyHMACBase64 checks a base64-encoded HMAC-SHA256 signature over the
// raw body using a constant-time compare.
func VerifyHMACBase64(secret string, body []byte, sig string) error {
	if sig == "" {
		return fmt.Errorf("missing signature: %w", ErrUnauthorized)
	}
	provided, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("undecodable signature: %w", ErrUnauthorized)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return fmt.Errorf("bad signature: %w", ErrUnauthorized)
	}
	return nil
}

// VerifyHexSignature checks a Webex-style hex signature. The header value
// may carry a "sha1=" or "sha256=" prefix selecting the algorithm;
// defaultAlgo applies otherwise.
func VerifyHexSignature(secret, defaultAlgo string, body []byte, sig string) error {
	if sig == "" {
		return fmt.Errorf("missing signature: %w", ErrUnauthorized)
	}

	algo := strings.ToLower(defaultAlgo)
	if rest, ok := strings.CutPrefix(sig, "sha256="); ok {
		algo, sig = "sha256", rest
	} else if rest, ok := strings.CutPrefix(sig, "sha1="); ok {
		algo, sig = "sha1", rest
	}

	var newHash func() hash.Hash
	switch algo {
	case "sha256":
		newHash = sha256.New
	default:
		newHash = sha1.New
	}

	provided, err := hex.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("undecodable signature: %w", ErrUnauthorized)
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return fmt.Errorf("bad signature: %w", ErrUnauthorized)
	}
	return nil
}

// VerifyBearer compares the Authorization header against the expected token.
func VerifyBearer(token, authorization string) error {
	if authorization != "Bearer "+token {
		return fmt.Errorf("bad bearer token: %w", ErrUnauthorized)
	}
	return nil
}
