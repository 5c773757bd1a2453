// Package logging builds the zap logger used for diagnostics.
//
// Diagnostics always go to stderr; stdout and the output file are never
// written by the logger.
//
//	logger, err := logging.New("info", "console")
//	logger.Infow("connected", "device", "/dev/ttyUSB0")
package logging
