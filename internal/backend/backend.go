// Package backend talks to the store that owns all club data.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"club-registration/internal/models"
)

var (
	// ErrAPI marks a response the external API flagged as an error or
	// that could not be understood.
	ErrAPI = errors.New("external api error")

	// ErrUnsupported is returned by backends that cannot serve a resource
	// or operation.
	ErrUnsupported = errors.New("unsupported by backend")
)

// Backend reads rows and submits writes. Implementations never cache.
type Backend interface {
	Fetch(ctx context.Context, resource string) ([]models.Row, error)
	Post(ctx context.Context, req Request) (Response, error)
}

// RawFetcher is implemented by backends that can return resources that are
// not tabular, such as upcoming_sessions.
type RawFetcher interface {
	FetchRaw(ctx context.Context, resource string) (json.RawMessage, error)
}

type Path struct {
	Role      string `json:"role"`
	Operation string `json:"operation"`
}

// Request is the body of every write: {path: {role, operation}, data}.
type Request struct {
	Path Path        `json:"path"`
	Data interface{} `json:"data"`
}

type Response struct {
	Body []byte
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// ID extracts the identifier of the created or updated record. The API has
// answered with a bare number, a numeric string, {id}, {data: {id}} or an
// object whose first numeric field is the id. -1 means none was found.
func (r Response) ID() int64 {
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		return -1
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		if n, ok := numeric(string(body)); ok {
			return n
		}
		return -1
	}
	switch x := v.(type) {
	case float64:
		return int64(x)
	case string:
		return Response{Body: []byte(x)}.idFromString()
	case map[string]interface{}:
		if n, ok := numeric(x["id"]); ok {
			return n
		}
		if data, ok := x["data"].(map[string]interface{}); ok {
			if n, ok := numeric(data["id"]); ok {
				return n
			}
		}
		return firstNumericField(body)
	}
	return -1
}

func (r Response) idFromString() int64 {
	s := strings.TrimSpace(string(r.Body))
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch x := v.(type) {
		case float64:
			return int64(x)
		case map[string]interface{}:
			if n, ok := numeric(x["id"]); ok {
				return n
			}
			return -1
		}
	}
	if n, ok := numeric(s); ok {
		return n
	}
	return -1
}

func numeric(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || strings.TrimSpace(x) == "" {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

// firstNumericField walks a top-level object in document order.
func firstNumericField(body []byte) int64 {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return -1
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return -1
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return -1
		}
		if n, ok := numeric(v); ok {
			return n
		}
	}
	return -1
}
