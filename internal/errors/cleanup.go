// Package errors holds small error-handling helpers shared by runmetrics packages.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a warning when Close fails.
// Intended for defer statements where the close error would otherwise be dropped.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
