// Package config loads typedce settings from CUE.
//
// The schema (schema.cue) is embedded. A user file is unified with it, so
// unknown fields and out-of-range values are rejected by CUE itself, and
// omitted fields take their defaults. Feature and pass names are checked
// against the ir and passes packages after decoding.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/typedce/internal/ir"
	"github.com/roach88/typedce/internal/passes"
)

//go:embed schema.cue
var schemaCUE string

// Error codes.
const (
	ErrCodeRead    = "C001" // config file cannot be read
	ErrCodeSyntax  = "C002" // config file is not valid CUE
	ErrCodeSchema  = "C003" // config does not match #Config
	ErrCodeFeature = "C004" // unknown feature name
	ErrCodePass    = "C005" // unknown pass name
)

// Error is a configuration error, with a CUE position when one is known.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config is the decoded configuration.
type Config struct {
	Features []string `json:"features"`
	Passes   []string `json:"passes"`
	Journal  string   `json:"journal"`
	LogLevel string   `json:"logLevel"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse("", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads and parses the file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(path, data)
}

// Parse unifies src with the schema and decodes the result. filename is
// used for positions only.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, wrapCUE(ErrCodeSyntax, err)
	}
	value := schema.LookupPath(cue.ParsePath("#Config"))

	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, wrapCUE(ErrCodeSyntax, err)
		}
		value = value.Unify(user)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, wrapCUE(ErrCodeSchema, err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, wrapCUE(ErrCodeSchema, err)
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) check() error {
	if _, err := ir.ParseFeatures(c.Features); err != nil {
		return &Error{Code: ErrCodeFeature, Message: err.Error()}
	}
	known := passes.Names()
	for _, name := range c.Passes {
		if !slices.Contains(known, name) {
			return &Error{Code: ErrCodePass, Message: fmt.Sprintf("unknown pass %q (known: %s)", name, strings.Join(known, ", "))}
		}
	}
	return nil
}

// FeatureSet returns the configured features.
func (c *Config) FeatureSet() ir.FeatureSet {
	set, err := ir.ParseFeatures(c.Features)
	if err != nil {
		return ir.FeaturesAll
	}
	return set
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func wrapCUE(code string, err error) *Error {
	e := &Error{Code: code, Message: cueerrors.Details(err, nil)}
	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		e.Message = cerr.Error()
		if pos := cueerrors.Positions(err); len(pos) > 0 {
			e.Pos = pos[0]
		}
	}
	return e
}
