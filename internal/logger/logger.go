package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	isDevelopment = false // if running in debug mode

	logFile *os.File = nil

	once sync.Once

	rootLogger zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// GetLogger returns the process-wide logger tagged with a service name.
// The first call fixes the output mode; later calls only re-tag.
func GetLogger(serviceName string) zerolog.Logger {
	once.Do(func() {
		if !isDevelopment {
			rootLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
			return
		}

		// Human-readable console output for development mode.
		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339,
			FormatLevel: func(i any) string {
				return strings.ToUpper(fmt.Sprintf("[%5s]", i))
			},
			FormatMessage: func(i any) string {
				return fmt.Sprintf("| %s |", i)
			},
			FormatCaller: func(i any) string {
				return filepath.Base(fmt.Sprintf("%s", i))
			},
			PartsExclude: []string{
				zerolog.TimestampFieldName,
			}}
		writer := zerolog.MultiLevelWriter(consoleWriter)
		if logFile != nil {
			writer = zerolog.MultiLevelWriter(consoleWriter, logFile)
		}
		rootLogger = zerolog.New(writer).Level(zerolog.TraceLevel).With().Timestamp().Caller().Logger()
	})

	return rootLogger.With().Str("service", serviceName).Logger()
}

// SetDevelopment switches on human-readable console logging. Must be called
// before the first GetLogger.
func SetDevelopment(value bool) {
	isDevelopment = value
}

// SetLogFile adds a file the development-mode logger also writes to.
func SetLogFile(file *os.File) {
	logFile = file
}
