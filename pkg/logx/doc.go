// Package logx wraps zerolog behind a small stable API.
//
// Components take a logx.Logger value; the zero value is a no-op,
// so tests and optional wiring never need nil checks.
package logx
