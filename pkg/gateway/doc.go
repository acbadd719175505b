// Package gateway forwards requests to the chat/status backend and attaches
// the backend credential.
//
// The credential strategy is resolved once from configuration into one of
// three values:
//
//   - NoAuth: no credential header (mode "none", or any loopback backend)
//   - IDToken: "Authorization: Bearer <token>" minted for an audience
//   - APIKey: "x-api-key: <key>" read from the secrets manager
//
// Forward never fails because a credential is unavailable. A missing key or
// a failed token fetch is logged and the request goes out without a header,
// so the backend answers with its own authorization error.
//
// Identity tokens come from a process-wide IdentityClient that is built on
// first use. The client is shared; tokens are fetched fresh on every call.
package gateway
