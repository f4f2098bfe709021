// Package domain contains the core entities of the generation pipeline:
// jobs, plans, usage counters, and webhook event records. Domain types
// validate themselves and carry no persistence or transport concerns.
package domain
