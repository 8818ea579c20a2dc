package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// HeaderName carries the timestamp and signature of an outbound webhook
	HeaderName = "X-Plop-Signature"

	// Version is the identifier of the HMAC-SHA256 scheme
	Version = "v1"
)

var (
	ErrInvalidHeader    = errors.New("invalid signature header")
	ErrMismatch         = errors.New("signature mismatch")
	ErrTimestampSkewed  = errors.New("signature timestamp outside tolerance")
	ErrUnsupportedValue = errors.New("unsupported signature version")
)

// Signature is the parsed content of the signature header
type Signature struct {
	Timestamp int64
	V1        string
}

// String returns the header value in the format: t=<unix>,v1=<hex>
func (s Signature) String() string {
	return fmt.Sprintf("t=%d,%s=%s", s.Timestamp, Version, s.V1)
}

// Time returns the signed timestamp
func (s Signature) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// Compute returns hex(HMAC_SHA256(secret, "{unix}.{body}"))
func Compute(secret string, unix int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(unix, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign signs body at timestamp. It is pure: same inputs, same signature.
// body must be the exact bytes that will be transmitted.
func Sign(secret string, timestamp time.Time, body []byte) Signature {
	unix := timestamp.Unix()
	return Signature{Timestamp: unix, V1: Compute(secret, unix, body)}
}

// ParseHeader parses a header value in the format: t=<unix>,v1=<hex>
func ParseHeader(header string) (Signature, error) {
	if header == "" {
		return Signature{}, fmt.Errorf("%w: empty", ErrInvalidHeader)
	}

	var sig Signature
	var haveTimestamp bool
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Signature{}, fmt.Errorf("%w: malformed part %q", ErrInvalidHeader, part)
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Signature{}, fmt.Errorf("%w: timestamp: %v", ErrInvalidHeader, err)
			}
			sig.Timestamp = ts
			haveTimestamp = true
		case Version:
			sig.V1 = value
		default:
			/* unknown versions are ignored so receivers survive future schemes */
		}
	}

	if !haveTimestamp {
		return Signature{}, fmt.Errorf("%w: missing timestamp", ErrInvalidHeader)
	}
	if sig.V1 == "" {
		return Signature{}, ErrUnsupportedValue
	}
	return sig, nil
}

// Verify checks header against body using constant-time comparison.
// With tolerance > 0 the signed timestamp must also be within tolerance of now;
// this is the receiver-side replay check, the sender never enforces it.
func Verify(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	sig, err := ParseHeader(header)
	if err != nil {
		return err
	}

	expected, err := hex.DecodeString(Compute(secret, sig.Timestamp, body))
	if err != nil {
		return fmt.Errorf("decoding calculated signature: %w", err)
	}
	received, err := hex.DecodeString(sig.V1)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrInvalidHeader)
	}
	if subtle.ConstantTimeCompare(expected, received) != 1 {
		return ErrMismatch
	}

	if tolerance > 0 {
		skew := now.Sub(sig.Time())
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrTimestampSkewed
		}
	}
	return nil
}
