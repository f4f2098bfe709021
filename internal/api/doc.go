// Package api contains the HTTP boundary: request/response models,
// handlers for job submission and retrieval, the progress event stream,
// and the billing webhook receiver. Handlers translate service errors into
// sanitized HTTP responses; no internal error text reaches clients.
package api
