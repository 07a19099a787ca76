package types

// OutputBuffer implements the optional output buffer contract: a missing buffer
// is replaced by a fresh allocation of exactly n entries, a supplied one has its
// first n entries used in place. Callers reject short buffers with BufferFits
// before any work starts.
func OutputBuffer[E any](buf []E, n int) []E {
	if len(buf) < n {
		return make([]E, n)
	}
	return buf[:n]
}

// BufferFits reports whether an optional output buffer is absent or large
// enough to hold n entries.
func BufferFits[E any](buf []E, n int) bool {
	return buf == nil || len(buf) >= n
}

// Fill sets every entry of s to val.
func Fill[E any](s []E, val E) []E {
	for i := range s {
		s[i] = val
	}
	return s
}

// Shift adds delta to every entry of s in place.
func Shift[T Idx](s []T, delta T) []T {
	if delta == 0 {
		return s
	}
	for i := range s {
		s[i] += delta
	}
	return s
}

// Shifted returns a shifted copy of s.
func Shifted[T Idx](s []T, delta T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return Shift(out, delta)
}

// MinMax returns the extremes of a non-empty index slice.
func MinMax[T Idx](s []T) (min, max T) {
	min, max = s[0], s[0]
	for _, v := range s[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}
