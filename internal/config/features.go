package config

import (
	"log/slog"
	"strings"

	ferrors "git.home.luguber.info/inful/catobuild/internal/foundation/errors"
	"git.home.luguber.info/inful/catobuild/internal/logfields"
)

// Feature names used in warnings.
const (
	FeatureOpenMP        = "openmp"
	FeatureDisableOpenMP = "disable-openmp"
	FeatureNetCDF        = "netcdf"
)

// FeatureWarning reports a requested feature that has no effect. It never
// stops a build.
type FeatureWarning struct {
	Feature string
	Message string
}

func (w FeatureWarning) String() string { return w.Message }

// LogValue lets a warning be logged as a group.
func (w FeatureWarning) LogValue() slog.Value {
	return slog.GroupValue(logfields.Feature(w.Feature), slog.String("message", w.Message))
}

// Err returns the warning as a classified, non-fatal feature error.
func (w FeatureWarning) Err() error {
	return ferrors.FeatureWarning(w.Message).WithContext(logfields.KeyFeature, w.Feature).Build()
}

// featureWarnings derives the warnings for the requested toggles. The
// compile flags are only inspected, never changed.
func featureWarnings(opts Options, compileFlags []string) []FeatureWarning {
	var out []FeatureWarning
	if opts.EnableNetCDF {
		out = append(out, FeatureWarning{
			Feature: FeatureNetCDF,
			Message: "netCDF replacement for parallel I/O is not implemented yet; the flag has no effect",
		})
	}
	if opts.EnableOpenMP {
		if !containsSubstring(compileFlags, "openmp") {
			out = append(out, FeatureWarning{
				Feature: FeatureOpenMP,
				Message: "OpenMP handling was requested but no compile flag enables OpenMP (add -fopenmp)",
			})
		}
		out = append(out, FeatureWarning{
			Feature: FeatureOpenMP,
			Message: "OpenMP detection and insertion is not implemented yet; the flag has no effect",
		})
	}
	if opts.DisableOpenMP {
		if opts.EnableOpenMP {
			out = append(out, FeatureWarning{
				Feature: FeatureDisableOpenMP,
				Message: "--enable-openmp and --disable-openmp were both given",
			})
		}
		out = append(out, FeatureWarning{
			Feature: FeatureDisableOpenMP,
			Message: "disabling OpenMP handling is not implemented yet; the flag has no effect",
		})
	}
	return out
}

func containsSubstring(flags []string, sub string) bool {
	for _, f := range flags {
		if strings.Contains(f, sub) {
			return true
		}
	}
	return false
}
