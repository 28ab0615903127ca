package core

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidator(t *testing.T) {
	type request struct {
		Method string     `json:"method" validate:"required,httpmethod"`
		Path   string     `json:"path" validate:"notoken"`
		Query  url.Values `json:"query" validate:"notoken"`
	}
	validate, translator := NewValidator()

	tests := []struct {
		name string
		req  request
		want map[string]string
	}{
		{name: "valid", req: request{Method: "PATCH", Path: "/students/1?include=bus", Query: url.Values{"page": {"2"}}}},
		{
			name: "missing method",
			req:  request{Path: "/students"},
			want: map[string]string{"method": "this field is required"},
		},
		{
			name: "unknown method",
			req:  request{Method: "TRACE"},
			want: map[string]string{"method": "method must be one of GET, POST, PUT, PATCH or DELETE"},
		},
		{
			name: "token in path and query",
			req:  request{Method: "GET", Path: "/students?Access_Token=abc", Query: url.Values{"api_token": {"abc"}}},
			want: map[string]string{
				"path":  "path must not carry an access token",
				"query": "query must not carry an access token",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, FieldErrors(err, translator))
		})
	}
}
