package validation

// Failure is a single business-rule rejection, addressed to a field
// of the request that caused it.
type Failure struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result accumulates validation failures across the steps of a workflow.
// The zero value is a valid result.
type Result struct {
	Failures []Failure `json:"failures,omitempty"`
}

func (r *Result) Add(field, message string) {
	r.Failures = append(r.Failures, Failure{Field: field, Message: message})
}

func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Failures = append(r.Failures, other.Failures...)
}

func (r *Result) Valid() bool {
	return len(r.Failures) == 0
}

// Messages flattens the failures for transports that carry plain strings.
func (r *Result) Messages() []string {
	if len(r.Failures) == 0 {
		return nil
	}
	msgs := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		msgs[i] = f.Message
	}
	return msgs
}
