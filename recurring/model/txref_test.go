package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/model"
)

func TestParseTxRefLocal(t *testing.T) {
	id := primitive.NewObjectID()
	ref := model.ParseTxRef(id.Hex())

	assert.True(t, ref.IsLocal())
	assert.Equal(t, id, ref.Local())
	assert.Empty(t, ref.External())
	assert.Equal(t, id.Hex(), ref.String())
}

func TestParseTxRefExternal(t *testing.T) {
	for _, raw := range []string{"stmt-ext-42", "plaid:abc123", "ZZZZZZZZZZZZZZZZZZZZZZZZ"} {
		ref := model.ParseTxRef(raw)
		assert.False(t, ref.IsLocal(), "raw %q", raw)
		assert.True(t, ref.Local().IsZero())
		assert.Equal(t, raw, ref.External())
		assert.Equal(t, raw, ref.String())
	}
}

func TestLocalTxRef(t *testing.T) {
	id := primitive.NewObjectID()
	ref := model.LocalTxRef(id)

	assert.True(t, ref.IsLocal())
	assert.Equal(t, id, ref.Local())
}
