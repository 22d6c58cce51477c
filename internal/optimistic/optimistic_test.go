package optimistic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeSettlesOnce(t *testing.T) {
	tests := []struct {
		name   string
		settle func(*Change[string]) error
		want   Status
	}{
		{"confirm", (*Change[string]).Confirm, Confirmed},
		{"revert", (*Change[string]).Revert, Reverted},
		{"resolve ok", func(c *Change[string]) error { return c.Resolve(true) }, Confirmed},
		{"resolve rejected", func(c *Change[string]) error { return c.Resolve(false) }, Reverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("entry")
			assert.Equal(t, Pending, c.Status())
			assert.False(t, c.Settled())

			assert.NoError(t, tt.settle(c))
			assert.Equal(t, tt.want, c.Status())
			assert.True(t, c.Settled())

			assert.ErrorIs(t, c.Confirm(), ErrSettled)
			assert.ErrorIs(t, c.Revert(), ErrSettled)
			assert.Equal(t, tt.want, c.Status())
		})
	}
}
