// Package security signs and verifies the payloads exchanged with the
// messaging bridge.
//
// Header format: X-Signature: t=<unix>,v1=<hex hmac-sha256 of "<t>.<body>">
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the payload signature.
const SignatureHeader = "X-Signature"

// DefaultTolerance is the accepted clock skew between signer and verifier.
const DefaultTolerance = 5 * time.Minute

var (
	ErrSignatureMissing   = errors.New("signature header missing or malformed")
	ErrSignatureMismatch  = errors.New("signature does not match payload")
	ErrSignatureExpired   = errors.New("signature timestamp outside tolerance")
	ErrSignatureNoSecrets = errors.New("no signing secret configured")
)

// Sign returns the header value for payload signed at now.
func Sign(payload []byte, secret string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeHMAC(ts, payload, secret))
}

// Verify checks header against payload. Any of secrets may match, so a
// rotated secret keeps working while both are configured. The timestamp
// must be within tolerance of now in either direction.
func Verify(payload []byte, header string, now time.Time, tolerance time.Duration, secrets ...string) error {
	var usable []string
	for _, s := range secrets {
		if s != "" {
			usable = append(usable, s)
		}
	}
	if len(usable) == 0 {
		return ErrSignatureNoSecrets
	}

	ts, sigs := parseHeader(header)
	if ts == "" || len(sigs) == 0 {
		return ErrSignatureMissing
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrSignatureMissing
	}
	if skew := now.Sub(time.Unix(unix, 0)); skew > tolerance || skew < -tolerance {
		return ErrSignatureExpired
	}

	for _, secret := range usable {
		expected := computeHMAC(ts, payload, secret)
		for _, sig := range sigs {
			if hmac.Equal([]byte(sig), []byte(expected)) {
				return nil
			}
		}
	}
	return ErrSignatureMismatch
}

// parseHeader returns the timestamp and every v1 signature in header.
func parseHeader(header string) (string, []string) {
	var (
		ts   string
		sigs []string
	)
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(segment), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sigs = append(sigs, value)
		}
	}
	return ts, sigs
}

func computeHMAC(ts string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
