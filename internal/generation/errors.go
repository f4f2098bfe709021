package generation

import "errors"

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when plan generation fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate plan")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during plan generation")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrContentBlocked is returned when the model refuses the request on
	// safety grounds; retrying the same input cannot succeed
	ErrContentBlocked = errors.New("content blocked by safety filters")
)
