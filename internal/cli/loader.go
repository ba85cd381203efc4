package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/wat"
)

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadProgram reads and parses the program text at path. "-" reads stdin.
func LoadProgram(path string, stdin io.Reader, features ir.FeatureSet) (*ir.Program, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found", Err: err}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Path: path, Message: err.Error(), Err: err}
	}

	p, err := wat.Parse(string(data), features)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: err.Error(), Err: err}
	}
	return p, nil
}

// loadOrFail loads a program and reports a load error through f.
func loadOrFail(f *OutputFormatter, path string, stdin io.Reader, features ir.FeatureSet) (*ir.Program, error) {
	p, err := LoadProgram(path, stdin, features)
	if err == nil {
		return p, nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return nil, f.Fail(ExitCommandError, le.Code, le.Error(), nil)
	}
	return nil, f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// newLogger returns a text logger on w. --verbose forces debug level.
func newLogger(w io.Writer, level slog.Level, verbose bool) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
