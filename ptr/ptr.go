package ptr

func Int64(i int64) *int64 {
	return &i
}

func String(s string) *string {
	return &s
}

// Deref returns the zero value for a nil pointer.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}
