// Package backendtest provides an in-memory backend for tests.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"club-registration/internal/backend"
	"club-registration/internal/models"
)

// Fake records every call. Rows and errors are keyed by resource.
type Fake struct {
	mu sync.Mutex

	Rows     map[string][]models.Row
	Raw      map[string]json.RawMessage
	FetchErr map[string]error
	PostErr  error
	// Respond overrides the default {"result":"success","id":N} answer.
	Respond func(req backend.Request) backend.Response

	Calls []string
	Posts []backend.Request
}

func New() *Fake {
	return &Fake{
		Rows:     map[string][]models.Row{},
		Raw:      map[string]json.RawMessage{},
		FetchErr: map[string]error{},
	}
}

func (f *Fake) Fetch(_ context.Context, resource string) ([]models.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "GET "+resource)
	if err := f.FetchErr[resource]; err != nil {
		return nil, err
	}
	rows := f.Rows[resource]
	out := make([]models.Row, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *Fake) FetchRaw(_ context.Context, resource string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "GET "+resource)
	if err := f.FetchErr[resource]; err != nil {
		return nil, err
	}
	return f.Raw[resource], nil
}

func (f *Fake) Post(_ context.Context, req backend.Request) (backend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "POST "+req.Path.Role+"/"+req.Path.Operation)
	f.Posts = append(f.Posts, req)
	if f.PostErr != nil {
		return backend.Response{}, f.PostErr
	}
	if f.Respond != nil {
		return f.Respond(req), nil
	}
	return backend.Response{Body: []byte(fmt.Sprintf(`{"result":"success","id":%d}`, len(f.Posts)))}, nil
}

// CallLog returns a copy of the ordered call log.
func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) Count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *Fake) SetRows(resource string, rows ...models.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rows[resource] = rows
}
