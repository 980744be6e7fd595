// Package logging provides structured logging for fwdump.
//
// This package wraps a global zap logger. Logging is silent by default so the
// styled command output stays clean; set FWDUMP_LOG_LEVEL to enable it:
//
//	FWDUMP_LOG_LEVEL=debug fwdump dump
//
// # Log Levels
//
//   - Debug: every remote protocol packet, rendered GDB scripts, raw output
//   - Info: session lifecycle, region selection, files written
//   - Warn: non-fatal issues (rejected clock command, close failures)
//   - Error: failures that abort the dump
//
// # Usage
//
// Components receive a *zap.Logger explicitly; commands obtain it once:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//	log := logging.GetLogger()
//
// Output is written to stderr in console format.
package logging
