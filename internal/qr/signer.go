// Package qr issues and verifies signed, time-boxed session codes that prove
// a trainee was present when the code was displayed.
package qr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 120 * time.Second

// Payload is the JSON content encoded in the QR image.
type Payload struct {
	ProgramID string `json:"programId"`
	Timestamp int64  `json:"timestamp"` // unix millis
	Signature string `json:"signature"`
}

// Token is an issued code.
type Token struct {
	Payload   string
	PNG       []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// DataURL renders the PNG as a data URL suitable for an <img> tag.
func (t Token) DataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(t.PNG)
}

// Signer issues and verifies codes. One active code is kept per program.
type Signer struct {
	secret []byte
	ttl    time.Duration
	active ActiveStore
	now    func() time.Time
}

// NewSigner creates a signer; ttl <= 0 uses DefaultTTL.
func NewSigner(secret string, ttl time.Duration, active ActiveStore) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, active: active, now: time.Now}
}

// Issue binds programID to the current time, signs it and makes it the
// program's active code.
func (s *Signer) Issue(ctx context.Context, programID string) (Token, error) {
	if programID == "" {
		return Token{}, errors.New("program id required")
	}
	issued := s.now()
	ts := issued.UnixMilli()
	p := Payload{ProgramID: programID, Timestamp: ts, Signature: s.sign(programID, ts)}
	raw, err := json.Marshal(p)
	if err != nil {
		return Token{}, errors.Wrap(err, "encode qr payload")
	}

	png, err := qrcode.Encode(string(raw), qrcode.Medium, 256)
	if err != nil {
		return Token{}, errors.Wrap(err, "render qr image")
	}
	if err := s.active.Set(ctx, programID, string(raw), s.ttl); err != nil {
		return Token{}, err
	}
	return Token{
		Payload:   string(raw),
		PNG:       png,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(s.ttl),
	}, nil
}

// Verify returns the program the payload was issued for. Any failure yields
// ("", false); callers treat that uniformly as an invalid code.
func (s *Signer) Verify(ctx context.Context, payload string) (string, bool) {
	var p Payload
	if err := json.Unmarshal([]byte(payload), &p); err != nil || p.ProgramID == "" {
		log.Printf("qr: malformed payload")
		return "", false
	}

	expected := s.sign(p.ProgramID, p.Timestamp)
	if !hmac.Equal([]byte(expected), []byte(p.Signature)) {
		log.Printf("qr: signature mismatch for program %s", p.ProgramID)
		return "", false
	}

	active, err := s.active.Get(ctx, p.ProgramID)
	if err != nil {
		log.Printf("qr: active lookup failed: %v", err)
		return "", false
	}
	if active != payload {
		log.Printf("qr: payload is not the active code for program %s", p.ProgramID)
		return "", false
	}

	age := s.now().Sub(time.UnixMilli(p.Timestamp))
	if age > s.ttl {
		log.Printf("qr: code for program %s expired", p.ProgramID)
		return "", false
	}
	return p.ProgramID, true
}

func (s *Signer) sign(programID string, ts int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(programID + "-" + strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}
