// Package gemini implements the generation.PlanGenerator interface using
// Google's Gemini API. It owns prompt construction, transient-error retry
// with exponential backoff, and parsing of the model's JSON output into
// domain plans. The retry loop here is internal to a single delivery
// attempt; the task queue's redelivery policy sits above it.
package gemini
