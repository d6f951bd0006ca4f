package validation

import (
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsCollects(t *testing.T) {
	var verr Errors
	assert.NoError(t, verr.Err())

	verr.Add("email", "required", "email is required")
	verr.Add("amount", "invalid", "amount must be greater than 0")
	err := verr.Err()
	require.Error(t, err)
	assert.Equal(t, "validation_error: email:required,amount:invalid", err.Error())

	got, ok := As(fmt.Errorf("initialize: %w", err))
	require.True(t, ok)
	assert.Len(t, got.Fields, 2)
}

func TestFromBinding(t *testing.T) {
	type request struct {
		Email    string `validate:"required,email"`
		Quantity int64  `validate:"gt=0"`
	}
	err := validator.New().Struct(request{Email: "nope"})
	require.Error(t, err)

	verr := FromBinding(err)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "email", verr.Fields[0].Field)
	assert.Equal(t, "email", verr.Fields[0].Code)
	assert.Equal(t, "quantity", verr.Fields[1].Field)
	assert.Equal(t, "gt", verr.Fields[1].Code)

	other := FromBinding(fmt.Errorf("unexpected EOF"))
	require.Len(t, other.Fields, 1)
	assert.Equal(t, "request", other.Fields[0].Field)

	empty := FromBinding(nil)
	assert.NoError(t, empty.Err())
}
