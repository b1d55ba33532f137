// Package stores persists the backend's Redis records: user accounts keyed by
// email and the single-use nonces issued with each passwordless flow.
//
// Account mutations run under WATCH/MULTI with retry on contention. Nonces
// are versioned binary records read with GET and consumed with GETDEL.
// Redis failures are wrapped with the store's Unavailable sentinel.
package stores
