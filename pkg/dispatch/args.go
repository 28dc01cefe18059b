package dispatch

import (
	"fmt"
	"strings"

	"github.com/sipeed/dispatchkit/pkg/command"
)

// parseArguments maps tokens positionally onto the command's arguments.
//
// Missing trailing tokens take their argument's default when the command
// ignores non-present arguments; otherwise any difference in count fails.
// Surplus tokens are joined into the last argument only with greedy-last.
// A token that fails its type or rules aborts the parse, unless the
// command ignores nulls, in which case that argument takes its default.
func parseArguments(cmd *command.Verified, pattern, usage string, tokens []string) (command.Args, error) {
	declared := cmd.Arguments()
	expected, actual := len(declared), len(tokens)

	if actual > expected {
		if !cmd.Has(command.PropGreedyLast) || expected == 0 {
			return command.Args{}, &CountMismatchError{Command: pattern, Usage: usage, Expected: expected, Actual: actual}
		}
		joined := strings.Join(tokens[expected-1:], " ")
		tokens = append(tokens[:expected-1:expected-1], joined)
	}
	if actual < expected && !cmd.Has(command.PropIgnoreNonPresent) {
		return command.Args{}, &CountMismatchError{Command: pattern, Usage: usage, Expected: expected, Actual: actual}
	}

	ignoreNull := cmd.Has(command.PropIgnoreNull)
	values := make([]command.Value, 0, expected)
	for i, arg := range declared {
		if i >= len(tokens) {
			values = append(values, command.Value{ID: arg.Identifier(), Value: arg.Default(), Defaulted: true})
			continue
		}

		raw := tokens[i]
		v, err := parseValue(arg, raw)
		if err != nil {
			if ignoreNull {
				values = append(values, command.Value{ID: arg.Identifier(), Raw: raw, Value: arg.Default(), Defaulted: true})
				continue
			}
			return command.Args{}, &ParseError{Command: pattern, Argument: arg.Identifier(), Raw: raw, Cause: err}
		}
		values = append(values, command.Value{ID: arg.Identifier(), Raw: raw, Value: v})
	}
	return command.NewArgs(values...), nil
}

// parseValue turns a panicking parser or rule into a parse error.
func parseValue(arg *command.Argument, raw string) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%w: %v", errParserPanic, r)
		}
	}()
	return arg.Parse(raw)
}
