package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type parses one raw token into a typed value.
type Type[T any] interface {
	Name() string
	Parse(raw string) (T, error)
}

type typeFunc[T any] struct {
	name  string
	parse func(string) (T, error)
}

func (t typeFunc[T]) Name() string                { return t.name }
func (t typeFunc[T]) Parse(raw string) (T, error) { return t.parse(raw) }

// TypeOf adapts a parse function into a Type.
func TypeOf[T any](name string, parse func(string) (T, error)) Type[T] {
	return typeFunc[T]{name: name, parse: parse}
}

var (
	String Type[string] = TypeOf("string", func(s string) (string, error) {
		return s, nil
	})

	// Word is a string without whitespace; it only differs from String for
	// greedy trailing arguments.
	Word Type[string] = TypeOf("word", func(s string) (string, error) {
		if strings.ContainsAny(s, " \t\n") {
			return "", fmt.Errorf("%q is not a single word", s)
		}
		return s, nil
	})

	Int Type[int] = TypeOf("int", strconv.Atoi)

	Int64 Type[int64] = TypeOf("int64", func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})

	Float Type[float64] = TypeOf("float", func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})

	Bool Type[bool] = TypeOf("bool", parseBool)

	Duration Type[time.Duration] = TypeOf("duration", time.ParseDuration)

	UUID Type[uuid.UUID] = TypeOf("uuid", uuid.Parse)
)

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// Enum accepts one of values, matched case-insensitively, and yields the
// declared spelling.
func Enum(values ...string) Type[string] {
	name := "enum(" + strings.Join(values, "|") + ")"
	return TypeOf(name, func(s string) (string, error) {
		for _, v := range values {
			if strings.EqualFold(v, s) {
				return v, nil
			}
		}
		return "", fmt.Errorf("%q is not one of %s", s, strings.Join(values, ", "))
	})
}
