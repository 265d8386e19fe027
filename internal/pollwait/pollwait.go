// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pollwait implements bounded condition polling. Every wait in the credential
// subsystem is expressed as "poll with bounded attempts" rather than an ad hoc sleep, so the
// logic stays unit-testable with a fake browser driver.
package pollwait

import (
	"context"
	"fmt"
	"time"
)

// ConditionFunc reports whether the awaited condition has been reached. Returning an error
// stops the poll early.
type ConditionFunc func(ctx context.Context) (done bool, err error)

// ErrAttemptsExhausted is returned by Poll when the condition never became true.
type ErrAttemptsExhausted struct {
	Attempts int
	Interval time.Duration
}

func (e *ErrAttemptsExhausted) Error() string {
	return "condition not reached after " + time.Duration(e.Attempts*int(e.Interval)).String()
}

// Poll runs condition up to attempts times, waiting interval between runs. The condition is
// run once immediately. Cancellation of ctx is respected both during the condition and
// between attempts.
func Poll(ctx context.Context, interval time.Duration, attempts int, condition ConditionFunc) error {
	for i := 0; i < attempts; i++ {
		// Stop if the context is done.
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ok, err := wrapConditionWithNoPanics(ctx, condition)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		// Wait before running again, allowing cancellation during the wait.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return &ErrAttemptsExhausted{Attempts: attempts, Interval: interval}
}

func wrapConditionWithNoPanics(ctx context.Context, condition ConditionFunc) (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if err2, ok := r.(error); ok {
				err = err2
				return
			}
			err = fmt.Errorf("condition panicked: %v", r)
		}
	}()

	return condition(ctx)
}
