package command

import "time"

// PropertyKey names a command-level behaviour switch.
type PropertyKey string

const (
	// PropIgnoreNonPresent substitutes defaults for missing trailing arguments.
	PropIgnoreNonPresent PropertyKey = "ignore-non-present"
	// PropIgnoreNull substitutes the default when an argument fails to parse.
	PropIgnoreNull PropertyKey = "ignore-null"
	// PropCatchFaults isolates action panics instead of aborting the dispatch.
	PropCatchFaults PropertyKey = "catch-faults"
	// PropAsync asks the host to run the execute stage off its main loop.
	PropAsync PropertyKey = "async"
	// PropHidden keeps the command out of help output and host registration.
	PropHidden PropertyKey = "hidden"
	// PropGreedyLast joins surplus tokens into the last argument.
	PropGreedyLast PropertyKey = "greedy-last"
	// PropRateLimit limits how often one commander may run the command.
	PropRateLimit PropertyKey = "rate-limit"
)

// Property is a command-level flag with an optional value.
type Property struct {
	key   PropertyKey
	value any
}

func (p *Property) Identifier() string { return string(p.key) }
func (p *Property) Kind() Kind         { return KindProperty }
func (p *Property) sealed()            {}

func (p *Property) Key() PropertyKey { return p.key }
func (p *Property) Value() any       { return p.value }

func IgnoreNonPresent() *Property { return &Property{key: PropIgnoreNonPresent} }
func IgnoreNull() *Property       { return &Property{key: PropIgnoreNull} }
func CatchFaults() *Property      { return &Property{key: PropCatchFaults} }
func Async() *Property            { return &Property{key: PropAsync} }
func Hidden() *Property           { return &Property{key: PropHidden} }
func GreedyLast() *Property       { return &Property{key: PropGreedyLast} }

// RateLimitSpec allows Burst runs at once, refilled one every Every.
// A zero spec means "use the engine default".
type RateLimitSpec struct {
	Every time.Duration
	Burst int
}

func RateLimit(every time.Duration, burst int) *Property {
	return &Property{key: PropRateLimit, value: RateLimitSpec{Every: every, Burst: burst}}
}
