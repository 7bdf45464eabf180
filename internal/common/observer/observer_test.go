package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotifyInSubscriptionOrder(t *testing.T) {
	var s Subject[int]
	var got []string

	s.Subscribe(func(v int) { got = append(got, "a") })
	s.Subscribe(func(v int) { got = append(got, "b") })
	s.Notify(1)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	var s Subject[string]
	calls := 0
	unsub := s.Subscribe(func(string) { calls++ })

	s.Notify("x")
	unsub()
	unsub()
	s.Notify("y")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Len())
}

func TestListenerMaySubscribeDuringNotify(t *testing.T) {
	var s Subject[int]
	inner := 0
	s.Subscribe(func(int) {
		s.Subscribe(func(int) { inner++ })
	})

	assert.NotPanics(t, func() { s.Notify(1) })
	assert.Equal(t, 0, inner)
	assert.Equal(t, 2, s.Len())
}
