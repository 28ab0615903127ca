package apiclient

import (
	"net/http"
	"net/url"
)

// Descriptor describes one outbound call. Path is relative to the client's base URL
// and must never carry the access token, the client attaches it.
type Descriptor struct {
	Method string      `json:"method" validate:"required,httpmethod"`
	Path   string      `json:"path" validate:"required,startswith=/,notoken"`
	Query  url.Values  `json:"query" validate:"notoken"`
	Body   interface{} `json:"body"`

	// Conflict declares that a 409 means a duplicate (ValidationConflict).
	Conflict bool `json:"-"`
	// Public requests are sent without credentials and a 401 is an ordinary HttpError
	// (eg. bad credentials on login), the session is left untouched.
	Public bool `json:"-"`
}

func Get(path string, query url.Values) Descriptor {
	return Descriptor{Method: http.MethodGet, Path: path, Query: query}
}

func Post(path string, body interface{}) Descriptor {
	return Descriptor{Method: http.MethodPost, Path: path, Body: body}
}

func Put(path string, body interface{}) Descriptor {
	return Descriptor{Method: http.MethodPut, Path: path, Body: body}
}

func Patch(path string, body interface{}) Descriptor {
	return Descriptor{Method: http.MethodPatch, Path: path, Body: body}
}

func Delete(path string) Descriptor {
	return Descriptor{Method: http.MethodDelete, Path: path}
}

// WithConflict returns a copy of `d` declaring conflict semantics.
func (d Descriptor) WithConflict() Descriptor {
	d.Conflict = true
	return d
}

// AsPublic returns a copy of `d` sent without credentials.
func (d Descriptor) AsPublic() Descriptor {
	d.Public = true
	return d
}
