package kin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/kin"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "Post", kin.Label("post"))
	assert.Equal(t, "CategoryPost", kin.Label("category_post"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Post", kin.Title("post"))
	assert.Equal(t, "Category Post", kin.Title("category_post"))
}

func TestSingular(t *testing.T) {
	assert.Equal(t, "post", kin.Singular("posts"))
	assert.Equal(t, "category", kin.Singular("categories"))
	assert.Equal(t, "person", kin.Singular("people"))
}
