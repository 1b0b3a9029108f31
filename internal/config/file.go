package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/catobuild/internal/foundation/errors"
)

// DefaultFileName is picked up from the working directory when no project
// file is named explicitly.
const DefaultFileName = "catobuild.yaml"

// File is the optional per-project configuration file.
type File struct {
	Tools         FileTools   `yaml:"tools"`
	Pipeline      string      `yaml:"pipeline,omitempty"`
	Assemble      string      `yaml:"assemble,omitempty"`
	Cleanup       bool        `yaml:"cleanup,omitempty"`
	LinkIORuntime bool        `yaml:"link_io_runtime,omitempty"`
	DefaultCFlags []string    `yaml:"default_cflags,omitempty"` // replaces the built-in defaults when set
	Queries       FileQueries `yaml:"queries"`
}

// FileTools overrides tool names. Empty fields keep the defaults.
type FileTools struct {
	Wrapper     string   `yaml:"wrapper,omitempty"`
	WrapperArgs []string `yaml:"wrapper_args,omitempty"`
	Optimizer   string   `yaml:"optimizer,omitempty"`
	Assembler   string   `yaml:"assembler,omitempty"`
	PassName    string   `yaml:"pass_name,omitempty"`
}

// FileQueries are command lines whose output is appended to the flags.
type FileQueries struct {
	CFlags  []string `yaml:"cflags,omitempty"`
	LDFlags []string `yaml:"ldflags,omitempty"`
}

// LoadFile reads a project file. Variables are expanded from env before
// parsing; unknown keys are rejected.
func LoadFile(path string, env Environment) (*File, error) {
	// #nosec G304 - path is supplied by the user on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "cannot read project file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	f, err := ParseFile(bytes.NewReader([]byte(env.Expand(string(data)))))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid project file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	return f, nil
}

// ParseFile decodes and validates a project file.
func ParseFile(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.Pipeline != "" {
		if _, err := shapes.NormalizeWithError(f.Pipeline); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
	}
	if f.Assemble != "" {
		if _, err := assembleModes.NormalizeWithError(f.Assemble); err != nil {
			return fmt.Errorf("assemble: %w", err)
		}
	}
	return nil
}
