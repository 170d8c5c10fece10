package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageParams(t *testing.T) {
	p, l := PageParams(0, 0)
	assert.Equal(t, 1, p)
	assert.Equal(t, DefaultPageLimit, l)

	p, l = PageParams(3, 500)
	assert.Equal(t, 3, p)
	assert.Equal(t, 100, l)
	assert.Equal(t, 200, Offset(p, l))
}

func TestNewPagination(t *testing.T) {
	pg := NewPagination(45, 2, 20)
	assert.Equal(t, 3, pg.TotalPages)
	assert.True(t, pg.HasNextPage)
	assert.True(t, pg.HasPrevPage)

	pg = NewPagination(0, 1, 20)
	assert.Equal(t, 0, pg.TotalPages)
	assert.False(t, pg.HasNextPage)
	assert.False(t, pg.HasPrevPage)
}
