package gateway

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

const SignatureHeader = "Payment-Signature"

var ErrInvalidSignature = errors.New("invalid payment signature")

// Sign は "t=<unix>,v1=<hex>" 形式のヘッダ値を作る
func Sign(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + computeMAC(secret, ts, body)
}

func computeMAC(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verifier は通知の署名とタイムスタンプを検証する。
type Verifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &Verifier{secret: secret, tolerance: tolerance, now: time.Now}
}

func (v *Verifier) Verify(header string, body []byte) error {
	if v.secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sigs = append(sigs, val)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	age := v.now().Sub(time.Unix(unix, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := []byte(computeMAC(v.secret, ts, body))
	for _, s := range sigs {
		if hmac.Equal(expected, []byte(s)) {
			return nil
		}
	}
	return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
}
