// Package logx wraps zerolog behind a small structured-logging facade.
//
// Components hold a Logger value; the Service owns the sinks (console and
// optional file) and can swap them at runtime via Apply() without the
// holders noticing. The zero Logger is a safe no-op.
package logx
