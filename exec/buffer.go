package exec

import (
	"syscall"

	"github.com/patchvm/patchvm/internal"
	"github.com/patchvm/patchvm/isa"
)

// Buffer is the single page-aligned executable region holding the
// currently linked code. Capacity is fixed at allocation; a program
// that does not fit is a link failure, never a resize.
//
// The mapping is read+execute except inside Install, which briefly
// flips it writable while the worker is stopped.
type Buffer struct {
	data []byte
}

// NewBuffer maps a fresh executable region of at least capacity bytes,
// rounded up to the page size and filled with no-ops.
func NewBuffer(capacity int) (buf *Buffer, err error) {
	size := internal.AlignUp(capacity, syscall.Getpagesize())

	data, err := syscall.Mmap(-1, 0, size,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		err = &ErrOs{Op: "mmap", Err: err}
		return
	}

	for n := range data {
		data[n] = isa.NOP_BYTE
	}

	if err = syscall.Mprotect(data, syscall.PROT_READ|syscall.PROT_EXEC); err != nil {
		syscall.Munmap(data)
		err = &ErrOs{Op: "mprotect", Err: err}
		return
	}

	buf = &Buffer{data: data}

	return
}

// Capacity returns the usable size of the buffer in bytes.
func (buf *Buffer) Capacity() int {
	return len(buf.data)
}

// Bytes returns the mapped region. The worker fetches from this slice;
// nothing else may hold on to it across an Install.
func (buf *Buffer) Bytes() []byte {
	return buf.data
}

// Install overwrites the buffer with code, padding the remainder with
// no-ops. The caller must guarantee the worker is stopped.
func (buf *Buffer) Install(code []byte) (err error) {
	if len(code) > len(buf.data) {
		err = ErrBufferFull(len(code))
		return
	}

	if err = syscall.Mprotect(buf.data, syscall.PROT_READ|syscall.PROT_WRITE); err != nil {
		err = &ErrOs{Op: "mprotect", Err: err}
		return
	}

	n := copy(buf.data, code)
	for ; n < len(buf.data); n++ {
		buf.data[n] = isa.NOP_BYTE
	}

	if err = syscall.Mprotect(buf.data, syscall.PROT_READ|syscall.PROT_EXEC); err != nil {
		err = &ErrOs{Op: "mprotect", Err: err}
		return
	}

	return
}

// Close unmaps the region.
func (buf *Buffer) Close() (err error) {
	if buf.data == nil {
		return
	}

	if err = syscall.Munmap(buf.data); err != nil {
		err = &ErrOs{Op: "munmap", Err: err}
	}
	buf.data = nil

	return
}
