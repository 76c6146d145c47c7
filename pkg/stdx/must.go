package stdx

// Must1 takes a value of any type and an error. If the error is not nil,
// it panics with the error. Otherwise, it returns the value.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
