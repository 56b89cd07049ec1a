// Package export copies the issue database to a file or an S3 object once
// a check run has finished.
package export
