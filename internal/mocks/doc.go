// Package mocks provides hand-written test doubles for the store and
// generation interfaces. Each mock exposes function fields for per-test
// behavior overrides and falls back to a simple in-memory implementation
// when the field is nil.
package mocks
