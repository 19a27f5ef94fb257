// Package profile provides optional runtime profiling for lgen.
//
// Profiling is built on [github.com/pkg/profile] and is compiled in only
// with the "pprof" build tag:
//
//	go build -tags pprof .
//	./lgen --pprof-mode cpu eval greetings.lg Greeting
//
// Without the tag, [Modes] is empty and [Config.Start] returns a no-op
// [Stopper], so callers never need their own build constraints.
//
// Profiles are written to the directory given by [WithPath], named after the
// mode (cpu.pprof, mem.pprof, ...), and can be inspected with
// "go tool pprof".
package profile

// Tag is the build tag required to enable pprof profiling.
const Tag = `pprof`
