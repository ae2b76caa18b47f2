/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFeed(t *testing.T) {
	t.Run("drops oldest when subscriber lags", func(t *testing.T) {
		var counter int32

		feed := NewFeed(2, func() ([]int, error) {
			return []int{int(atomic.AddInt32(&counter, 1))}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch := feed.Subscribe(ctx)

		for i := 0; i < 5; i++ {
			feed.Notify()
		}

		require.Equal(t, []int{5}, <-ch)
		require.Equal(t, []int{6}, <-ch)
	})

	t.Run("unsubscribes on cancel", func(t *testing.T) {
		feed := NewFeed(0, func() ([]string, error) { return nil, nil })

		ctx, cancel := context.WithCancel(context.Background())
		feed.Subscribe(ctx)
		require.Equal(t, 1, feed.Subscribers())

		cancel()

		require.Eventually(t, func() bool { return feed.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

		feed.Notify()
	})

	t.Run("query error keeps previous snapshot", func(t *testing.T) {
		fail := false

		feed := NewFeed(4, func() ([]string, error) {
			if fail {
				return nil, errors.New("boom")
			}

			return []string{"a"}, nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch := feed.Subscribe(ctx)
		require.Equal(t, []string{"a"}, <-ch)

		fail = true
		feed.Notify()

		select {
		case <-ch:
			t.Fatal("unexpected snapshot")
		default:
		}
	})
}
