package optional

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionIsNone(t *testing.T) {
	assert.True(t, None[int]().IsNone())
	assert.False(t, Some(123).IsNone())
}

func TestOptionIsSome(t *testing.T) {
	assert.False(t, None[int]().IsSome())
	assert.True(t, Some(123).IsSome())
}

func TestOptionUnwrap(t *testing.T) {
	assert.Equal(t, "foo", Some("foo").Unwrap())
	assert.Equal(t, "", None[string]().Unwrap())
	assert.Nil(t, None[*string]().Unwrap())
}

func TestOptionTake(t *testing.T) {
	v, ok := Some(123).Take()
	assert.True(t, ok)
	assert.Equal(t, 123, v)

	v, ok = None[int]().Take()
	assert.False(t, ok)
	assert.Equal(t, 0, v)
}

func TestOptionTakeOr(t *testing.T) {
	assert.Equal(t, 123, Some(123).TakeOr(666))
	assert.Equal(t, 666, None[int]().TakeOr(666))
}

func TestOptionTakeOrElse(t *testing.T) {
	assert.Equal(t, 123, Some(123).TakeOrElse(func() int { return 666 }))
	assert.Equal(t, 666, None[int]().TakeOrElse(func() int { return 666 }))
}

func TestOptionMap(t *testing.T) {
	doubled := Map(Some(21), func(v int) int { return v * 2 })
	assert.Equal(t, 42, doubled.Unwrap())
	assert.True(t, Map(None[int](), func(v int) int { return v * 2 }).IsNone())
}

func TestOptionZeroValueIsNone(t *testing.T) {
	var o Option[string]
	assert.True(t, o.IsNone())
}
