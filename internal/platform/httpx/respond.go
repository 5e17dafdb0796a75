// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// PermissionProblem extends ProblemDetail with the unmet permission
// requirement so clients can explain the gap behind a 403.
type PermissionProblem struct {
	ProblemDetail
	RequiredPermissions []string `json:"required_permissions"`
	RequireAll          bool     `json:"require_all"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ForbiddenRequirement sends a 403 problem carrying the permission
// keys the caller lacked and the ANY/ALL combinator.
func ForbiddenRequirement(w http.ResponseWriter, required []string, requireAll bool) {
	JSON(w, http.StatusForbidden, PermissionProblem{
		ProblemDetail: ProblemDetail{
			Title:  "Forbidden",
			Status: http.StatusForbidden,
			Detail: "missing required permissions",
		},
		RequiredPermissions: required,
		RequireAll:          requireAll,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
