// Package config resolves the effective build configuration for one
// invocation.
//
// Flags are gathered in layers, each extending the previous one: fixed
// defaults, the environment, command-line groups and finally the output of
// configuration queries such as "nc-config --cflags". The result is an
// Effective value that is computed once and only read afterwards.
package config
