// Package client talks to the GrowthFarm backend auth API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (Client) for the four auth calls the
//     session machine needs: Login, Register, Me and Logout.
//  2. A concrete HTTP/JSON implementation (HTTPClient) that tags every
//     request with an X-Request-ID, bounds it with a timeout, and maps HTTP
//     outcomes to sentinel errors.
//
// # Error Handling
//
// Callers match outcomes with errors.Is: ErrUnauthorized (401, bad
// credentials or a token the server no longer accepts), ErrForbidden (403,
// the token is fine but the resource belongs to someone else), ErrUnavailable
// (network failure, timeout, 5xx) and ErrRejected (the server refused the
// payload, e.g. a taken username). The concrete *APIError carries the HTTP status and the
// server's message.
//
// Tokens are opaque: nothing in this package inspects them.
package client
