// Package httpapi exposes the circulation handlers over HTTP with JSON bodies.
//
// Errors are written as {"error": message, "kind": kind} and mapped by kind:
// not_found is 404, business is 422, conflict is 409, malformed input is 400 and anything
// else is 500. A POST carrying an Idempotency-Key header is answered once and replayed
// from an in-memory LRU cache afterwards.
package httpapi
