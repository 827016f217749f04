package executor

// GraphQLError is a located error in a response.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// Code returns the "code" extension, or "" when there is none.
func (e GraphQLError) Code() string {
	code, _ := e.Extensions["code"].(string)
	return code
}

// ExecutionResult is the response of one operation or of a detached
// selection set.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// CountCode returns how many errors in r carry code.
func (r *ExecutionResult) CountCode(code string) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Errors {
		if e.Code() == code {
			n++
		}
	}
	return n
}
