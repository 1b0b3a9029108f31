// Package errors provides classified error primitives used across catobuild.
//
// A ClassifiedError carries a broad category (config, launch, stage, ...) and a
// severity, plus structured context for logging. The CLI adapter turns any error
// into a user-facing message and a process exit code.
//
// Example usage:
//
//	err := errors.ConfigError("CATO_ROOT is not set").
//		WithContext("variable", "CATO_ROOT").
//		Build()
package errors
