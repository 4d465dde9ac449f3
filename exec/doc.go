// Package exec supervises execution of linked code.
//
// A Controller owns one fixed-capacity executable buffer, the worker
// context running inside it, and a control goroutine that is the only
// goroutine allowed to touch the buffer or the worker's registers.
// Callers reach the controller through a command queue: UpdateCode and
// GetState are caller-synchronous, Execute returns once the resume is
// issued, and an exit callback reports where control left the program.
//
// The buffer is mutated only while the worker is provably stopped; that
// single invariant replaces all cross-thread locking between the
// control goroutine and the worker.
package exec
