package services

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func TestAuthService_Login(t *testing.T) {
	svc := NewAuthService(newTestCodec(), "letmein")

	_, err := svc.Login("   ", "letmein")
	require.ErrorIs(t, err, ErrEmptyName)

	_, err = svc.Login("alice", "wrong")
	require.ErrorIs(t, err, ErrWrongSitePassword)

	_, err = svc.Login("alice", "")
	require.ErrorIs(t, err, ErrWrongSitePassword)

	ticket, err := svc.Login("  alice  ", "letmein")
	require.NoError(t, err)
	assert.Equal(t, "alice", ticket.Name)
	assert.NotEmpty(t, ticket.Token)
	assert.Equal(t, "alice", ticket.EscapedName)
	assert.Equal(t, svc.codec.Sign("alice"), ticket.Tag)
	assert.False(t, ticket.ExpiresAt.IsZero())
}

func TestAuthService_LoginEmptyNameCheckedFirst(t *testing.T) {
	svc := NewAuthService(newTestCodec(), "letmein")
	_, err := svc.Login("", "wrong")
	require.ErrorIs(t, err, ErrEmptyName)
}

func TestAuthService_ResolvePairRoundTrip(t *testing.T) {
	codec := newTestCodec()
	svc := NewAuthService(codec, "pw")

	names := []string{"alice", "Bob Smith", "Zoë", "100% real", "a+b", "../../etc/passwd", "名前"}
	for _, n := range names {
		escaped := url.QueryEscape(n)
		id := svc.ResolvePair(strPtr(escaped), strPtr(codec.Sign(n)))
		require.NotNil(t, id, n)
		assert.Equal(t, n, id.Name)

		for _, other := range names {
			if other == n {
				continue
			}
			assert.Nil(t, svc.ResolvePair(strPtr(escaped), strPtr(codec.Sign(other))), "%s with %s tag", n, other)
		}
	}
}

func TestAuthService_ResolvePairAnonymous(t *testing.T) {
	codec := newTestCodec()
	svc := NewAuthService(codec, "pw")
	tag := codec.Sign("alice")

	assert.Nil(t, svc.ResolvePair(nil, nil))
	assert.Nil(t, svc.ResolvePair(strPtr("alice"), nil))
	assert.Nil(t, svc.ResolvePair(nil, strPtr(tag)))
	assert.Nil(t, svc.ResolvePair(strPtr(""), strPtr(codec.Sign(""))))
	assert.Nil(t, svc.ResolvePair(strPtr("+++"), strPtr(codec.Sign("   "))))
	assert.Nil(t, svc.ResolvePair(strPtr("%zz"), strPtr(tag)))
	assert.Nil(t, svc.ResolvePair(strPtr("alice"), strPtr("")))
	assert.Nil(t, svc.ResolvePair(strPtr("alice"), strPtr(tag[:63])))
}

func TestAuthService_ResolveTicket(t *testing.T) {
	svc := NewAuthService(newTestCodec(), "pw")
	ticket, err := svc.Login("alice", "pw")
	require.NoError(t, err)

	id := svc.ResolveTicket(ticket.Token)
	require.NotNil(t, id)
	assert.Equal(t, "alice", id.Name)

	assert.Nil(t, svc.ResolveTicket(""))
	assert.Nil(t, svc.ResolveTicket(ticket.Token+"0"))
}

func TestAuthService_ResolvePrefersTicket(t *testing.T) {
	codec := newTestCodec()
	svc := NewAuthService(codec, "pw")
	ticket, err := svc.Login("alice", "pw")
	require.NoError(t, err)

	id := svc.Resolve(strPtr(ticket.Token), strPtr("bob"), strPtr(codec.Sign("bob")))
	require.NotNil(t, id)
	assert.Equal(t, "alice", id.Name)

	id = svc.Resolve(strPtr("bogus"), strPtr("bob"), strPtr(codec.Sign("bob")))
	require.NotNil(t, id)
	assert.Equal(t, "bob", id.Name)

	assert.Nil(t, svc.Resolve(strPtr("bogus"), nil, nil))
	assert.Nil(t, svc.Resolve(nil, nil, nil))
}
