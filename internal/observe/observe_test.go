package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishCoalesces(t *testing.T) {
	var h Hub
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish()
	h.Publish()
	h.Publish()

	assert.Len(t, ch, 1)
	<-ch
	assert.Len(t, ch, 0)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	var h Hub
	ch, cancel := h.Subscribe()

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	h.Publish()
}

func TestCloseUnsubscribesAll(t *testing.T) {
	var h Hub
	a, cancelA := h.Subscribe()
	b, _ := h.Subscribe()

	h.Close()
	cancelA()

	_, openA := <-a
	_, openB := <-b
	assert.False(t, openA)
	assert.False(t, openB)
}
