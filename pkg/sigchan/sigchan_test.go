package sigchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChan_Coalesces(t *testing.T) {
	c := New(1)
	assert.False(t, c.Pending())

	c.Emit()
	c.Emit()
	c.Emit()
	assert.True(t, c.Pending())
	assert.False(t, c.Pending())
}

func TestChan_MinimumBuffer(t *testing.T) {
	c := New(0)
	c.Emit()
	select {
	case <-c.C():
	default:
		t.Fatal("signal dropped")
	}
}
