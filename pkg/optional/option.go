package optional

// Option represents a value that may be absent. The zero value is None.
type Option[T any] struct {
	value  T
	exists bool
}

func Some[T any](v T) Option[T] {
	return Option[T]{value: v, exists: true}
}

func None[T any]() Option[T] {
	return Option[T]{}
}

func (o Option[T]) IsSome() bool {
	return o.exists
}

func (o Option[T]) IsNone() bool {
	return !o.exists
}

// Take returns the contained value and whether it is present.
func (o Option[T]) Take() (T, bool) {
	return o.value, o.exists
}

func (o Option[T]) TakeOr(fallback T) T {
	if o.exists {
		return o.value
	}
	return fallback
}

func (o Option[T]) TakeOrElse(fallback func() T) T {
	if o.exists {
		return o.value
	}
	return fallback()
}

// Unwrap returns the contained value, or the zero value of T if absent.
func (o Option[T]) Unwrap() T {
	return o.value
}

func Map[T, U any](o Option[T], f func(T) U) Option[U] {
	if o.exists {
		return Some(f(o.value))
	}
	return None[U]()
}
