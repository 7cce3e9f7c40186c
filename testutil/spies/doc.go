// Package spies provides recording test doubles for the circulation observability
// interfaces and for reservation notifiers.
package spies
