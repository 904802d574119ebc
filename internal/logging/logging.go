// Package logging собирает zerolog.Logger процесса из настроек.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New создаёт логгер с уровнем level ("debug", "info", ...).
// Неизвестный уровень даёт info. pretty включает человекочитаемый вывод
// для локальной разработки, иначе пишется JSON.
func New(level string, pretty bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
