// Package flowhost simulates the passwordless SDK. It creates intents,
// runs the user-facing step through an [Approver] on its own goroutine and
// delivers exactly one ownid.Response per launch.
//
// An approved flow yields a FlowResult whose Data is an Ed25519-signed
// assertion naming the purpose, email, device credential and nonce. The
// nonce is recorded in Redis so the backend can enforce single use.
package flowhost
