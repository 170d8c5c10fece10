package qr

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) (*Signer, *time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	s := NewSigner("secret", 0, NewMemoryActiveStore())
	s.now = func() time.Time { return now }
	return s, &now
}

func TestIssueVerify(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	tok, err := s.Issue(ctx, "prog-1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.PNG)
	assert.True(t, strings.HasPrefix(tok.DataURL(), "data:image/png;base64,"))
	assert.Equal(t, DefaultTTL, tok.ExpiresAt.Sub(tok.IssuedAt))

	programID, ok := s.Verify(ctx, tok.Payload)
	assert.True(t, ok)
	assert.Equal(t, "prog-1", programID)
}

func TestVerifyRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("expired after ttl", func(t *testing.T) {
		s, now := newTestSigner(t)
		tok, err := s.Issue(ctx, "prog-1")
		require.NoError(t, err)

		*now = now.Add(DefaultTTL + time.Millisecond)
		_, ok := s.Verify(ctx, tok.Payload)
		assert.False(t, ok)
	})

	t.Run("exactly at ttl is accepted", func(t *testing.T) {
		s, now := newTestSigner(t)
		tok, err := s.Issue(ctx, "prog-1")
		require.NoError(t, err)

		*now = now.Add(DefaultTTL - time.Millisecond)
		_, ok := s.Verify(ctx, tok.Payload)
		assert.True(t, ok)
	})

	t.Run("tampered signature", func(t *testing.T) {
		s, _ := newTestSigner(t)
		tok, err := s.Issue(ctx, "prog-1")
		require.NoError(t, err)

		var p Payload
		require.NoError(t, json.Unmarshal([]byte(tok.Payload), &p))
		p.Signature = strings.Repeat("0", len(p.Signature))
		raw, _ := json.Marshal(p)
		_, ok := s.Verify(ctx, string(raw))
		assert.False(t, ok)
	})

	t.Run("tampered program", func(t *testing.T) {
		s, _ := newTestSigner(t)
		tok, err := s.Issue(ctx, "prog-1")
		require.NoError(t, err)
		_, err = s.Issue(ctx, "prog-2")
		require.NoError(t, err)

		forged := strings.Replace(tok.Payload, "prog-1", "prog-2", 1)
		_, ok := s.Verify(ctx, forged)
		assert.False(t, ok)
	})

	t.Run("superseded code", func(t *testing.T) {
		s, now := newTestSigner(t)
		first, err := s.Issue(ctx, "prog-1")
		require.NoError(t, err)
		*now = now.Add(time.Second)
		_, err = s.Issue(ctx, "prog-1")
		require.NoError(t, err)

		_, ok := s.Verify(ctx, first.Payload)
		assert.False(t, ok)
	})

	t.Run("garbage", func(t *testing.T) {
		s, _ := newTestSigner(t)
		_, ok := s.Verify(ctx, "not json")
		assert.False(t, ok)
		_, ok = s.Verify(ctx, `{"timestamp":1}`)
		assert.False(t, ok)
	})
}

func TestCodesArePerProgram(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSigner(t)

	a, err := s.Issue(ctx, "prog-a")
	require.NoError(t, err)
	b, err := s.Issue(ctx, "prog-b")
	require.NoError(t, err)

	got, ok := s.Verify(ctx, a.Payload)
	assert.True(t, ok)
	assert.Equal(t, "prog-a", got)
	got, ok = s.Verify(ctx, b.Payload)
	assert.True(t, ok)
	assert.Equal(t, "prog-b", got)
}

func TestMemoryActiveStoreExpiry(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryActiveStore()
	now := time.Now()
	st.now = func() time.Time { return now }

	require.NoError(t, st.Set(ctx, "p", "payload", time.Minute))
	v, err := st.Get(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "payload", v)

	now = now.Add(time.Minute)
	v, err = st.Get(ctx, "p")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestRedisActiveStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisActiveStore(client, "")

	require.NoError(t, st.Set(ctx, "p1", "payload-1", 2*time.Minute))
	assert.True(t, mr.Exists("qr:active:p1"))

	v, err := st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "payload-1", v)

	v, err = st.Get(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, v)

	mr.FastForward(2*time.Minute + time.Second)
	v, err = st.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, v)
}
