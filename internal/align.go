package internal

// AlignUp rounds size up to the next multiple of align.
// align must be a power of two.
func AlignUp(size, align int) int {
	return (size + align - 1) & ^(align - 1)
}
