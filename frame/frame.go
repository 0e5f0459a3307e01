// Package frame describes how the processing core copies and frees image
// buffers without knowing their concrete type.
package frame

// Ops holds the clone and release functions for frames of type F.
// A nil Release means frames need no explicit cleanup.
type Ops[F any] struct {
	Clone   func(F) F
	Release func(F)
}

// Copy returns an independent copy of f, or f itself when no Clone is set.
func (o Ops[F]) Copy(f F) F {
	if o.Clone == nil {
		return f
	}
	return o.Clone(f)
}

// Free releases f if a Release function is set.
func (o Ops[F]) Free(f F) {
	if o.Release != nil {
		o.Release(f)
	}
}
