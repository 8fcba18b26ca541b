package services

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/HammerMeetNail/memeboard/internal/models"
)

var (
	ErrEmptyName         = errors.New("name is required")
	ErrWrongSitePassword = errors.New("wrong site password")
)

// Ticket is everything the login response hands back to the client.
type Ticket struct {
	Name        string
	Token       string
	EscapedName string
	Tag         string
	ExpiresAt   time.Time
}

type AuthService struct {
	codec        *Codec
	sitePassword string
}

func NewAuthService(codec *Codec, sitePassword string) *AuthService {
	return &AuthService{codec: codec, sitePassword: sitePassword}
}

// Login checks the shared site password and issues a ticket for name.
func (s *AuthService) Login(name, password string) (*Ticket, error) {
	name = models.NormalizeName(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !secureCompare(s.sitePassword, password) {
		return nil, ErrWrongSitePassword
	}

	token, expires := s.codec.Issue(name)
	return &Ticket{
		Name:        name,
		Token:       token,
		EscapedName: url.QueryEscape(name),
		Tag:         s.codec.Sign(name),
		ExpiresAt:   expires,
	}, nil
}

// ResolveTicket returns the identity in a single-token ticket, or nil.
func (s *AuthService) ResolveTicket(token string) *models.Identity {
	if token == "" {
		return nil
	}
	name, ok := s.codec.Verify(token)
	if !ok {
		return nil
	}
	return &models.Identity{Name: name}
}

// ResolvePair validates the legacy name-claim/auth-tag pair. The name claim
// arrives percent-escaped. Any failure yields nil; it never errors.
func (s *AuthService) ResolvePair(nameClaim, tagClaim *string) *models.Identity {
	if nameClaim == nil || tagClaim == nil {
		return nil
	}
	name, err := url.QueryUnescape(*nameClaim)
	if err != nil || strings.TrimSpace(name) == "" {
		return nil
	}
	if !s.codec.VerifyTag(name, *tagClaim) {
		return nil
	}
	return &models.Identity{Name: name}
}

// Resolve prefers the single ticket and falls back to the pair.
func (s *AuthService) Resolve(token *string, nameClaim, tagClaim *string) *models.Identity {
	if token != nil {
		if id := s.ResolveTicket(*token); id != nil {
			return id
		}
	}
	return s.ResolvePair(nameClaim, tagClaim)
}
