package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	executor "github.com/hanpama/rsgate/internal/executor"
)

const codeBadRequest = "BAD_REQUEST"

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestErr is a failure to read a request, reported before execution.
type requestErr struct {
	status  int
	message string
}

func badRequest(message string) *requestErr {
	return &requestErr{status: http.StatusBadRequest, message: message}
}

// parseRequest reads a GET query string or a JSON POST body. A JSON array
// body is a batch.
func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, *requestErr) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		if q.Get("query") == "" {
			return GraphQLRequest{}, nil, badRequest("missing 'query'")
		}
		vars := map[string]any{}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, badRequest("invalid 'variables' JSON")
			}
		}
		return GraphQLRequest{Query: q.Get("query"), Variables: vars, OperationName: q.Get("operationName")}, nil, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return GraphQLRequest{}, nil, &requestErr{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
		}
	}

	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, badRequest("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, &requestErr{status: http.StatusRequestEntityTooLarge, message: "body too large"}
	}

	if len(body) > 0 && body[0] == '[' {
		var batch []GraphQLRequest
		if err := json.Unmarshal(body, &batch); err != nil {
			return GraphQLRequest{}, nil, badRequest("invalid JSON")
		}
		if len(batch) == 0 {
			return GraphQLRequest{}, nil, badRequest("empty batch")
		}
		return GraphQLRequest{}, batch, nil
	}

	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, badRequest("invalid JSON")
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, badRequest("missing 'query'")
	}
	return req, nil, nil
}

func requestError(message string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{{
		Message:    message,
		Extensions: map[string]any{"code": codeBadRequest},
	}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
