// Copyright 2024-2026 the MakeStar e2e-test authors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package renewal

import "errors"

// ErrSilentRenewalTimeout means the provider required a real login, which silent renewal
// cannot complete. This is an expected outcome, not a system error: callers fall back to
// interactive renewal and must not log it at error level.
var ErrSilentRenewalTimeout = errors.New("silent renewal requires a real login")

// ErrInteractiveRenewalTimeout means the human did not complete the login within the wait
// budget. Terminal for the current run; the caller surfaces the remediation command.
var ErrInteractiveRenewalTimeout = errors.New("interactive login was not completed in time")

// RemediationCommand is the concrete command an operator should run when authentication is
// unrecoverable. Failure messages must name this command rather than a generic error.
const RemediationCommand = "authctl setup"
