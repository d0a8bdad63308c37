package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/go/classpath/internal/cache"
)

//go:embed schema.cue
var schemaSource []byte

// Issue is a single schema violation.
type Issue struct {
	// Path is the field path of the violation, e.g. ["classes", "maxRetained"].
	Path    []string
	Message string
}

// Loader reads configuration files from a filesystem.
type Loader struct {
	fs     core.ReadFS
	cueCtx *cue.Context
	logger *cache.Logger
}

// NewLoader creates a Loader reading from filesystem. A nil logger disables
// logging.
func NewLoader(filesystem core.ReadFS, logger *slog.Logger) *Loader {
	return &Loader{
		fs:     filesystem,
		cueCtx: cuecontext.New(),
		logger: cache.FromSlog(logger).WithOperation(cache.OpLoadConfig),
	}
}

// Load reads, validates and decodes the configuration file at filePath.
// The format is chosen by extension: .cue, .json, .yaml or .yml.
//
// Returns CodeCUELoadFailed when the file cannot be read,
// CodeCUEBuildFailed when it does not compile, CodeCUEValidationFailed when
// it violates the schema and CodeInvalidConfig when the decoded values are
// inconsistent.
func (l *Loader) Load(ctx context.Context, filePath string) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeCUELoadFailed, "context cancelled",
			map[string]interface{}{"file_path": filePath})
	}

	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeCUELoadFailed, "failed to read config file",
			map[string]interface{}{"file_path": filePath})
	}

	value, err := l.compile(filePath, data)
	if err != nil {
		return nil, err
	}

	cfg, err := l.decode(filePath, value)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithContext(err, "file_path", filePath)
	}

	l.logger.Info(ctx, "loaded configuration",
		"file_path", filePath,
		"workers", cfg.Workers,
		"log_level", cfg.Logging.Level)
	return cfg, nil
}

// compile turns the file contents into a CUE value. JSON is a subset of
// CUE and compiles directly; YAML is decoded and re-encoded.
func (l *Loader) compile(filePath string, data []byte) (cue.Value, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".cue", ".json":
		value := l.cueCtx.CompileBytes(data, cue.Filename(filePath))
		if err := value.Err(); err != nil {
			return cue.Value{}, errors.WrapWithContext(err, errors.CodeCUEBuildFailed, "failed to compile config file",
				map[string]interface{}{"file_path": filePath, "issues": issuesOf(err)})
		}
		return value, nil
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return cue.Value{}, errors.WrapWithContext(err, errors.CodeCUEBuildFailed, "failed to parse YAML config file",
				map[string]interface{}{"file_path": filePath})
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
		value := l.cueCtx.Encode(doc)
		if err := value.Err(); err != nil {
			return cue.Value{}, errors.WrapWithContext(err, errors.CodeCUEBuildFailed, "failed to encode YAML config file",
				map[string]interface{}{"file_path": filePath})
		}
		return value, nil
	default:
		return cue.Value{}, errors.WithContextMap(
			errors.Newf(errors.CodeInvalidConfig, "unsupported config file extension %q", ext),
			map[string]interface{}{"file_path": filePath})
	}
}

// decode unifies value with the schema and decodes the result.
func (l *Loader) decode(filePath string, value cue.Value) (*Config, error) {
	schema := l.cueCtx.CompileBytes(schemaSource, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCUEBuildFailed, "config schema is invalid")
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true), cue.Final(), cue.All()); err != nil {
		issues := issuesOf(err)
		return nil, errors.WrapWithContext(err, errors.CodeCUEValidationFailed, "config file violates the schema",
			map[string]interface{}{
				"file_path": filePath,
				"details":   cueerrors.Details(err, nil),
				"issues":    issues,
			})
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeCUEDecodeFailed, "failed to decode config file",
			map[string]interface{}{"file_path": filePath})
	}
	return &cfg, nil
}

// Issues extracts the schema violations carried by a Load error.
func Issues(err error) []Issue {
	var platformErr errors.PlatformError
	if !errors.As(err, &platformErr) {
		return nil
	}
	issues, _ := platformErr.Context()["issues"].([]Issue)
	return issues
}

func issuesOf(err error) []Issue {
	var issues []Issue
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		issues = append(issues, Issue{
			Path:    e.Path(),
			Message: fmt.Sprintf(format, args...),
		})
	}
	return issues
}
