package logging

import (
	"io"
	"os"

	logging "github.com/inconshreveable/log15"
	"github.com/pkg/errors"
)

const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

// New builds the root logger of the service. An empty output writes to stdout.
// The returned close func releases the output file, if any.
func New(level, format, output string) (logging.Logger, func() error, error) {
	lvl, err := logging.LvlFromString(level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	var fmtr logging.Format
	switch format {
	case "", FormatTerminal:
		fmtr = logging.TerminalFormat()
	case FormatJSON:
		fmtr = logging.JsonFormat()
	default:
		return nil, nil, errors.Errorf("unknown log format %q", format)
	}

	var w io.Writer = os.Stdout
	closeOutput := func() error { return nil }
	if output != "" {
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "could not open log output")
		}
		w = f
		closeOutput = f.Close
	}

	logger := logging.New()
	logger.SetHandler(logging.LvlFilterHandler(lvl, logging.StreamHandler(w, fmtr)))
	return logger, closeOutput, nil
}

// Discard returns a logger that drops every record.
func Discard() logging.Logger {
	logger := logging.New()
	logger.SetHandler(logging.DiscardHandler())
	return logger
}
