package app

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// newWarnSink prints warnings raised during fitting as human-readable lines.
// Warnings carrying structured fields (FitFailedWarning and friends) have
// them embedded in the event.
func newWarnSink(w io.Writer) func(error) {
	noColor := os.Getenv("NO_COLOR") != ""
	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		noColor = true
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: noColor}).
		With().Timestamp().Logger()

	return func(warning error) {
		ev := logger.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	}
}
