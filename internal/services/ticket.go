package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

const (
	ticketVersion = "v1"

	hkdfInfoPairTag = "memeboard/pair-tag/v1"
	hkdfInfoTicket  = "memeboard/ticket/v1"
)

// Codec derives and checks identity-binding MAC tags. Its keys are fixed for
// the life of the process; rotating the secret invalidates every ticket.
type Codec struct {
	pairKey   []byte
	ticketKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		pairKey:   deriveKey(secret, hkdfInfoPairTag),
		ticketKey: deriveKey(secret, hkdfInfoTicket),
		ttl:       ttl,
		now:       time.Now,
	}
}

func deriveKey(secret, info string) []byte {
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF-SHA256 can emit up to 8160 bytes; 32 never fails.
		panic("hkdf: " + err.Error())
	}
	return key
}

// Sign returns the lowercase hex HMAC-SHA256 of name.
func (c *Codec) Sign(name string) string {
	mac := hmac.New(sha256.New, c.pairKey)
	mac.Write([]byte(name))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTag recomputes the tag for name and compares in constant time.
func (c *Codec) VerifyTag(name, tag string) bool {
	return secureCompare(c.Sign(name), tag)
}

// Issue builds a single opaque ticket: v1.<b64url(name)>.<expiryUnix>.<hex tag>.
func (c *Codec) Issue(name string) (string, time.Time) {
	expires := c.now().Add(c.ttl).Truncate(time.Second)
	payload := ticketVersion + "." +
		base64.RawURLEncoding.EncodeToString([]byte(name)) + "." +
		strconv.FormatInt(expires.Unix(), 10)
	return payload + "." + c.ticketTag(payload), expires
}

// Verify returns the name carried by token if it is well formed, unexpired
// and correctly tagged.
func (c *Codec) Verify(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 || parts[0] != ticketVersion {
		return "", false
	}

	payload := parts[0] + "." + parts[1] + "." + parts[2]
	if !secureCompare(c.ticketTag(payload), parts[3]) {
		return "", false
	}

	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || !c.now().Before(time.Unix(expUnix, 0)) {
		return "", false
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}
	name := string(raw)
	if strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

func (c *Codec) ticketTag(payload string) string {
	mac := hmac.New(sha256.New, c.ticketKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
