// Package backend is a Redis-backed authentication backend that implements
// ownid.Backend the way a hosted identity service would: it verifies the
// flow assertion carried in FlowResult.Data, keeps accounts keyed by email
// and issues signed ID tokens as sessions.
//
// A flow nonce is checked on every call and consumed only when the call
// commits. A register or login that answers "email and password required"
// therefore leaves the nonce live for the single login-and-link fallback.
//
// Redis failures surface as server errors; every other rejection wraps one
// of the ownid sentinels so ownid.KindOf classifies it.
package backend
