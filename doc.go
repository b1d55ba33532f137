// Package ownid is the host-side glue between a passwordless authentication
// SDK and an authentication backend.
//
// A [Client] validates the user's email, launches a register or login flow
// through the [SDK], and hands the single asynchronous [Response] to a
// [Dispatcher]. The dispatcher routes the result to [Backend.Register],
// [Backend.Login] or, when the backend answers [ErrEmailAndPasswordRequired],
// to exactly one [Backend.LoginAndLink] call, and returns the [Outcome] the
// host shows.
//
// # Error tiers
//
//   - Cancellation ([ErrCancelled], context.Canceled) is re-raised to the
//     caller and never shown or logged as an error.
//   - [ErrEmailAndPasswordRequired] selects the link fallback.
//   - Everything else becomes a failed Outcome carrying the message verbatim.
//     No call is retried.
//
// Reference collaborators live in sub-packages: flowhost simulates the SDK's
// user-facing flow and backend implements a Redis-backed auth backend.
package ownid
