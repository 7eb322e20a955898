// Package logging builds the slog logger used across kobodown.
//
// Two output formats are supported: a human console format for terminal
// use and line-delimited JSON for capture. Level and format come from
// the application config.
package logging
