// Package service contains the application's use-case layer: job
// submission behind the usage gate, job retrieval, billing event
// application, and job record retention. Services orchestrate stores, the
// task queue, and the quota gate; they own transaction boundaries and
// translate store errors into service-level ones.
package service
