// Package fixtures seeds circulation stores with members, books and copies for tests.
package fixtures
