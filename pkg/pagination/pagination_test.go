package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	p := Params{}
	p.Normalize()

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
}

func TestNormalize_ClampsNegatives(t *testing.T) {
	p := Params{Page: -3, Limit: -1}
	p.Normalize()

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
}

func TestNormalize_ClampsMaxLimit(t *testing.T) {
	p := Params{Page: 2, Limit: 10000}
	p.Normalize()

	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 500, p.Limit)
}

func TestBounds_FirstPage(t *testing.T) {
	p := Params{Page: 1, Limit: 10}
	start, end := p.Bounds(25)

	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)
}

func TestBounds_PartialLastPage(t *testing.T) {
	p := Params{Page: 3, Limit: 10}
	start, end := p.Bounds(25)

	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)
}

func TestBounds_PastEndIsEmpty(t *testing.T) {
	p := Params{Page: 10, Limit: 10}
	start, end := p.Bounds(25)

	assert.Equal(t, start, end)
}

func TestBounds_EmptyCollection(t *testing.T) {
	p := Params{Page: 1, Limit: 10}
	start, end := p.Bounds(0)

	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
}
