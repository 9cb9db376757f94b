package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New создаёт корневой логгер сервиса. Уровень задаётся строкой
// ("debug", "info", ...); нераспознанный уровень откатывается к info.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "scheduling-core").
		Logger()
}
