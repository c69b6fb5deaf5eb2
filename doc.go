// Package authclient owns the client side of authentication for the pool
// platform: token persistence, claim decoding, the session state machine,
// the outbound HTTP interceptor chain, and role-gated route guards.
//
// Session lifecycle:
//   - A Session is created when the server returns a signed token on login,
//     persisted through a TokenStore, restored on process start, and destroyed
//     on explicit logout, detected expiry, or a 401 from a protected endpoint.
//   - SessionStateMachine centralizes the transition graph (anonymous,
//     authenticated, expired) and publishes every change synchronously to
//     subscribers, so guards never observe a mid-transition snapshot.
//
// Interceptors:
//   - Chain composes three http.RoundTripper stages around any transport:
//     credential attachment, one-shot 401 handling, and error normalization.
//     Public endpoints (login, registration, password reset) bypass
//     credentials and 401 handling; external asset hosts additionally bypass
//     error normalization.
//
// Storage:
//   - TokenStore keeps two persisted representations of the token (canonical
//     and "Bearer "-prefixed) for compatibility with external readers. The
//     Reconciler converges them when independent writers leave them adrift.
//
// Decoding a token locally is never proof of authenticity. The server rejects
// invalid or expired tokens on protected endpoints regardless of what this
// package believes; Codec exists so the client can derive roles and expiry
// without a network round trip.
package authclient
