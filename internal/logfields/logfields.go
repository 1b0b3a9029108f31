package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyPhase      = "phase"
	KeyPolicy     = "policy"
	KeyCommand    = "command"
	KeyProgram    = "program"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyFeature    = "feature"
	KeyPath       = "path"
	KeyInput      = "input"
	KeyOutput     = "output"
	KeyShape      = "shape"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Phase(p string) slog.Attr        { return slog.String(KeyPhase, p) }
func Policy(p string) slog.Attr       { return slog.String(KeyPolicy, p) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Program(p string) slog.Attr      { return slog.String(KeyProgram, p) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Feature(f string) slog.Attr      { return slog.String(KeyFeature, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Input(p string) slog.Attr        { return slog.String(KeyInput, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Shape(s string) slog.Attr        { return slog.String(KeyShape, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
