package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		id, ok := FromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, id)
	})

	t.Run("present", func(t *testing.T) {
		ctx := NewContext(context.Background(), New("carrot", []string{"USER"}, true))
		id, ok := FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "carrot", id.Username)
		assert.True(t, id.Active)
	})

	t.Run("typed nil is absent", func(t *testing.T) {
		ctx := NewContext(context.Background(), nil)
		_, ok := FromContext(ctx)
		assert.False(t, ok)
	})

	t.Run("parent is untouched", func(t *testing.T) {
		parent := context.Background()
		_ = NewContext(parent, New("carrot", nil, true))
		_, ok := FromContext(parent)
		assert.False(t, ok)
	})
}

func TestNew_CopiesRoles(t *testing.T) {
	roles := []string{"USER"}
	id := New("carrot", roles, true)
	roles[0] = "ADMIN"

	assert.True(t, id.HasRole("USER"))
	assert.False(t, id.HasRole("ADMIN"))
}
