// Package logging builds the process-wide *slog.Logger.
//
// Records are encoded as JSON using zerolog's field names (time, level,
// message). On a terminal they are pretty-printed by zerolog.ConsoleWriter;
// with log.file set they are appended to a size-rotated file managed by
// lumberjack.
package logging
