package config

import (
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/catobuild/internal/foundation/errors"
)

// ArtifactPaths are the files a build reads and writes. Intermediates share
// the directory and stem of the executable.
type ArtifactPaths struct {
	Input         string
	IR            string
	TransformedIR string
	Bitcode       string
	Object        string
	Executable    string
}

// NewArtifactPaths derives the artifact set from the input source and the
// requested output. Any extension on output is replaced for intermediates, so
// "bin/app.exe" yields "bin/app.ll" while the executable stays "bin/app.exe".
func NewArtifactPaths(input, output string) (ArtifactPaths, error) {
	if input == "" {
		return ArtifactPaths{}, ferrors.ValidationError("no input file given").Build()
	}
	if output == "" {
		output = DefaultOutput
	}
	stem := strings.TrimSuffix(output, filepath.Ext(output))
	p := ArtifactPaths{
		Input:         input,
		IR:            stem + ".ll",
		TransformedIR: stem + "_modified.ll",
		Bitcode:       stem + ".bc",
		Object:        stem + ".o",
		Executable:    output,
	}

	for _, other := range p.Intermediates() {
		if filepath.Clean(other) == filepath.Clean(p.Executable) {
			return ArtifactPaths{}, ferrors.ValidationError("output would overwrite an intermediate artifact").
				WithContext("output", output).
				Build()
		}
		if filepath.Clean(other) == filepath.Clean(p.Input) {
			return ArtifactPaths{}, ferrors.ValidationError("an intermediate artifact would overwrite the input file").
				WithContext("input", input).
				WithContext("artifact", other).
				Build()
		}
	}
	return p, nil
}

// Intermediates lists every file produced on the way to the executable.
func (p ArtifactPaths) Intermediates() []string {
	return []string{p.IR, p.TransformedIR, p.Bitcode, p.Object}
}
