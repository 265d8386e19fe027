// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pollwait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoll(t *testing.T) {
	t.Run("returns nil as soon as the condition is true", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), time.Millisecond, 10, func(_ context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("returns ErrAttemptsExhausted when the condition never becomes true", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), time.Millisecond, 5, func(_ context.Context) (bool, error) {
			calls++
			return false, nil
		})
		var exhausted *ErrAttemptsExhausted
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, 5, exhausted.Attempts)
		require.Equal(t, 5, calls)
	})

	t.Run("stops early on condition error", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := Poll(context.Background(), time.Millisecond, 10, func(_ context.Context) (bool, error) {
			calls++
			return false, boom
		})
		require.ErrorIs(t, err, boom)
		require.Equal(t, 1, calls)
	})

	t.Run("respects context cancellation between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		err := Poll(ctx, time.Minute, 10, func(_ context.Context) (bool, error) {
			cancel()
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("recovers a panicking condition which panics with an error", func(t *testing.T) {
		boom := errors.New("panic error")
		err := Poll(context.Background(), time.Millisecond, 3, func(_ context.Context) (bool, error) {
			panic(boom)
		})
		require.ErrorIs(t, err, boom)
	})

	t.Run("recovers a condition which panics with a non-error value", func(t *testing.T) {
		calls := 0
		err := Poll(context.Background(), time.Millisecond, 3, func(_ context.Context) (bool, error) {
			calls++
			panic("string panic")
		})
		require.ErrorContains(t, err, "condition panicked: string panic")
		require.Equal(t, 1, calls, "a panicking condition must stop the poll, not be retried")
	})
}
