// Package rate limits login-and-link password attempts with Redis
// fixed-window counters.
//
// A counter is INCR'd on each failed attempt and gets its TTL on the first
// hit of the window. Keys are "<prefix>:<email>".
package rate
