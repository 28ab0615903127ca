package apiclient

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Shape is the JSON type a payload is expected to have.
type Shape int

const (
	ShapeAny Shape = iota
	ShapeList
	ShapeObject
)

func (s Shape) accepts(v interface{}) bool {
	switch s {
	case ShapeList:
		_, ok := v.([]interface{})
		return ok
	case ShapeObject:
		_, ok := v.(map[string]interface{})
		return ok
	}
	return v != nil
}

// empty is the payload used when no accessor matched.
func (s Shape) empty() json.RawMessage {
	switch s {
	case ShapeList:
		return json.RawMessage("[]")
	case ShapeObject:
		return json.RawMessage("{}")
	}
	return json.RawMessage("null")
}

// Accessor locates a candidate payload inside an envelope. An empty path is the root.
type Accessor struct {
	path []string
}

// Field looks up nested object keys, eg. Field("complaints", "data").
func Field(path ...string) Accessor {
	return Accessor{path: path}
}

func Root() Accessor {
	return Accessor{}
}

func (a Accessor) IsRoot() bool { return len(a.path) == 0 }

func (a Accessor) String() string {
	if a.IsRoot() {
		return "$"
	}
	return strings.Join(a.path, ".")
}

// lookup returns the value at the accessor's path and the object holding it.
func (a Accessor) lookup(root interface{}) (value interface{}, parent map[string]interface{}, ok bool) {
	if a.IsRoot() {
		parent, _ = root.(map[string]interface{})
		return root, parent, root != nil
	}
	cur := root
	for _, key := range a.path {
		m, isMap := cur.(map[string]interface{})
		if !isMap {
			return nil, nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, nil, false
		}
		parent = m
	}
	return cur, parent, cur != nil
}

// Strategy is an ordered list of accessors; the first one locating a value of the
// expected Shape wins.
type Strategy struct {
	Shape     Shape
	Accessors []Accessor
	Paginated bool
}

// ListOf looks for an array under each key in order, then under `data`, then at the root.
func ListOf(keys ...string) Strategy {
	return Strategy{Shape: ShapeList, Accessors: withFallbacks(keys)}
}

// PageOf is ListOf with pagination extracted.
func PageOf(keys ...string) Strategy {
	s := ListOf(keys...)
	s.Paginated = true
	return s
}

// ObjectOf looks for an object under each key in order, then under `data`, then at the root.
func ObjectOf(keys ...string) Strategy {
	return Strategy{Shape: ShapeObject, Accessors: withFallbacks(keys)}
}

// Raw returns the whole body whatever its shape.
func Raw() Strategy {
	return Strategy{Shape: ShapeAny, Accessors: []Accessor{Root()}}
}

func withFallbacks(keys []string) []Accessor {
	accessors := make([]Accessor, 0, len(keys)+2)
	var hasData bool
	for _, key := range keys {
		accessors = append(accessors, Field(key))
		hasData = hasData || key == "data"
	}
	if !hasData {
		accessors = append(accessors, Field("data"))
	}
	return append(accessors, Root())
}

// Result is the normalized payload of a successful request.
type Result struct {
	Payload    json.RawMessage
	Pagination *Pagination
	// Match is the accessor which located the payload, "" when the empty default was used.
	Match string
}

func (r *Result) Matched() bool { return r.Match != "" }

// Decode unmarshals the payload into `v`. Numbers decoded into interface{} values are json.Number.
func (r *Result) Decode(v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(r.Payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decoding payload")
	}
	return nil
}

// Unwrap extracts the payload of `body` following `s`. An unrecognized envelope yields the
// empty value of the expected shape, only invalid JSON fails (MalformedResponse).
// Paginated strategies always get a Pagination, defaulting to a single page of `perPage`.
func Unwrap(body []byte, s Strategy, perPage int) (*Result, error) {
	return unwrap(body, s, DefaultPagination(perPage))
}

// unwrap is Unwrap with the pagination fields missing from the body taken from `defaults`.
func unwrap(body []byte, s Strategy, defaults Pagination) (*Result, error) {
	root, err := decode(body)
	if err != nil {
		return nil, &Failure{Kind: KindMalformed, Message: err.Error(), Err: err}
	}

	res := &Result{Payload: s.Shape.empty()}
	var container map[string]interface{}
	for _, a := range s.Accessors {
		v, parent, ok := a.lookup(root)
		if !ok || !s.Shape.accepts(v) {
			continue
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, &Failure{Kind: KindMalformed, Message: err.Error(), Err: err}
		}
		res.Payload = payload
		res.Match = a.String()
		container = parent
		break
	}

	if s.Paginated {
		p := defaults
		if container != nil && hasPagination(container) {
			p.fill(container)
		} else if m, ok := root.(map[string]interface{}); ok && hasPagination(m) {
			p.fill(m)
		}
		res.Pagination = &p
	}
	return res, nil
}

// decode parses a single JSON value, numbers kept as json.Number. An empty body is null.
func decode(body []byte) (interface{}, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return v, nil
}
