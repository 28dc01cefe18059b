package command

// Capture records every action result of one dispatch, keyed by action
// identifier, in execution order. A capture belongs to a single dispatch and
// is not safe for concurrent use.
type Capture struct {
	ids     []string
	results map[string]Result
}

func NewCapture() *Capture {
	return &Capture{results: make(map[string]Result)}
}

func (c *Capture) Record(id string, r Result) {
	if _, ok := c.results[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.results[id] = r
}

func (c *Capture) Get(id string) (Result, bool) {
	r, ok := c.results[id]
	return r, ok
}

// IDs returns action identifiers in execution order.
func (c *Capture) IDs() []string {
	return append([]string(nil), c.ids...)
}

// Results returns action results in execution order.
func (c *Capture) Results() []Result {
	out := make([]Result, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.results[id])
	}
	return out
}

func (c *Capture) Len() int { return len(c.ids) }

// Failures returns the identifiers of failed actions.
func (c *Capture) Failures() []string {
	var out []string
	for _, id := range c.ids {
		if !c.results[id].OK() {
			out = append(out, id)
		}
	}
	return out
}
