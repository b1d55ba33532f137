// Package middleware provides net/http adapters for sessions issued after a
// passwordless flow.
//
// Guard expects an "Authorization: Bearer <id token>" header, verifies the
// token and stores the resulting *ownid.Session on the request context:
//
//	mux.Handle("/me", middleware.Guard(svc)(meHandler))
//
// Handlers read it back with SessionFromContext.
package middleware
