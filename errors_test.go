package kin_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/kin"
)

func TestSchemaError(t *testing.T) {
	err := kin.NewSchemaError("post")
	assert.Equal(t, `kin: unknown table "post"`, err.Error())
	assert.True(t, kin.IsSchemaError(err))
	assert.True(t, kin.IsSchemaError(fmt.Errorf("wrapped: %w", err)))

	fieldErr := kin.NewFieldError("category_post", "weight")
	assert.Equal(t, `kin: CategoryPost has no field "weight"`, fieldErr.Error())
	assert.True(t, kin.IsSchemaError(fieldErr))

	assert.False(t, kin.IsSchemaError(nil))
	assert.False(t, kin.IsSchemaError(errors.New("other")))
}

func TestInvalidDataError(t *testing.T) {
	err := kin.NewInvalidDataError("post", "body")
	assert.Equal(t, `kin: Post has no field "body" in data payload`, err.Error())
	assert.True(t, kin.IsInvalidData(err))

	cause := errors.New("bad value")
	conv := kin.NewConversionError("post", "id", "x", cause)
	assert.ErrorIs(t, conv, cause)
	assert.Contains(t, conv.Error(), "post.id")
	assert.False(t, kin.IsInvalidData(nil))
}

func TestRelationError(t *testing.T) {
	err := kin.NewRelationError("comment", "category")
	assert.Equal(t, "kin: no relation between Comment and Category", err.Error())

	// Multi-word table names read as titles, not as Go identifiers.
	bridged := kin.NewRelationError("category_post", "post")
	assert.Equal(t, "kin: no relation between Category Post and Post", bridged.Error())
	assert.True(t, kin.IsRelationError(err))
	assert.ErrorIs(t, err, kin.ErrNoRelation)
	assert.False(t, kin.IsRelationError(errors.New("other")))
}

func TestAggregateError(t *testing.T) {
	t.Run("nil members collapse", func(t *testing.T) {
		assert.NoError(t, kin.NewAggregateError(nil, nil))
	})

	t.Run("single error returned as is", func(t *testing.T) {
		cause := errors.New("one")
		assert.Same(t, cause, kin.NewAggregateError(nil, cause))
	})

	t.Run("multiple errors aggregate", func(t *testing.T) {
		e1 := errors.New("first")
		e2 := errors.New("second")
		err := kin.NewAggregateError(e1, nil, e2)

		var agg *kin.AggregateError
		require.ErrorAs(t, err, &agg)
		assert.Len(t, agg.Errors, 2)
		assert.ErrorIs(t, err, e1)
		assert.ErrorIs(t, err, e2)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "first")
	})
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, kin.IsNotFound(fmt.Errorf("%w: post", kin.ErrNotFound)))
	assert.False(t, kin.IsNotFound(errors.New("other")))
}
