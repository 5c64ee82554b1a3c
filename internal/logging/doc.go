// Package logging provides a simple leveled logging interface for the
// file index service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//
// The log level is configured via the LOG_LEVEL environment variable (or
// DEBUG=true). Messages are written through zerolog, as a human-readable
// console stream by default or as JSON lines when LOG_FORMAT=json.
package logging
