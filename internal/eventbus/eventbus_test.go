package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ n int }

type pong struct{}

func TestPublishSubscribe(t *testing.T) {
	Use(New())
	t.Cleanup(func() { Use(nil) })

	var first, second []int
	unsubFirst := Subscribe(func(_ context.Context, p ping) { first = append(first, p.n) })
	unsubSecond := Subscribe(func(_ context.Context, p ping) { second = append(second, p.n) })
	defer unsubSecond()

	Publish(context.Background(), ping{n: 1})
	Publish(context.Background(), pong{})
	unsubFirst()
	Publish(context.Background(), ping{n: 2})

	require.Equal(t, []int{1}, first)
	require.Equal(t, []int{1, 2}, second)
}

func TestNoBus(t *testing.T) {
	Use(nil)
	called := false
	unsub := Subscribe(func(context.Context, ping) { called = true })
	Publish(context.Background(), ping{})
	unsub()
	require.False(t, called)
}
