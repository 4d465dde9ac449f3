// Package isa defines the patchvm target architecture and its instruction
// encoder.
//
// The architecture is byte-coded: every instruction encodes to a short,
// variable-length byte sequence, branches carry a PC-relative displacement
// measured from the end of the instruction, and two single-byte codes are
// reserved for the linker (TRAP_BYTE exit points and NOP_BYTE padding).
//
// The encoder is stateless: one instruction in, raw bytes plus at most one
// relocation out. Nothing in this package knows about programs, code
// buffers, or workers.
package isa
