package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	plain, err := NewRedis(mr.Addr())
	require.NoError(t, err)
	defer plain.Close()
	assert.True(t, plain.Healthy(ctx))

	viaURL, err := NewRedis("redis://" + mr.Addr() + "/2")
	require.NoError(t, err)
	defer viaURL.Close()
	assert.Equal(t, 2, viaURL.Client.Options().DB)
	assert.True(t, viaURL.Healthy(ctx))

	_, err = NewRedis("redis://" + mr.Addr() + "/notadb")
	assert.Error(t, err)

	mr.Close()
	assert.False(t, plain.Healthy(ctx))
	assert.False(t, (*Redis)(nil).Healthy(ctx))
}
