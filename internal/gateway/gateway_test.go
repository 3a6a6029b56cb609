package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seen is one request observed by the fake API.
type seen struct {
	Method string
	Path   string
	Key    string
	CType  string
	Body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []seen
	handler  func(w http.ResponseWriter, r *http.Request, n int)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, seen{
		Method: r.Method,
		Path:   r.URL.Path,
		Key:    r.Header.Get(APIKeyHeader),
		CType:  r.Header.Get("Content-Type"),
		Body:   string(b),
	})
	f.mu.Unlock()
	f.handler(w, r, n)
}

func newFake(t *testing.T, h func(w http.ResponseWriter, r *http.Request, n int)) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{handler: h}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func rec(id int64, title string, completed bool) record {
	return record{
		ID:        id,
		Title:     title,
		Completed: completed,
		CreatedAt: "2025-01-01T00:00:00Z",
		UpdatedAt: "2025-01-01T00:00:00Z",
	}
}

func TestFetchAllMapsRecords(t *testing.T) {
	desc := "A description"
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		second := rec(2, "Second", true)
		second.Description = &desc
		second.CreatedAt = "2025-06-01T12:00:00Z"
		second.UpdatedAt = "2025-06-02T14:00:00Z"
		writeJSON(w, http.StatusOK, []record{rec(1, "Todo 1", false), second})
	})
	c := New(srv.URL, WithAPIKey("test-key-123"))

	items, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, "Todo 1", items[0].Title)
	assert.Nil(t, items[0].Description)
	assert.False(t, items[0].Completed)

	assert.Equal(t, "Second", items[1].Title)
	require.NotNil(t, items[1].Description)
	assert.Equal(t, desc, *items[1].Description)
	assert.True(t, items[1].Completed)
	assert.Equal(t, "2025-06-01T12:00:00Z", items[1].CreatedAt)
	assert.Equal(t, "2025-06-02T14:00:00Z", items[1].UpdatedAt)

	require.Len(t, f.requests, 1)
	assert.Equal(t, http.MethodGet, f.requests[0].Method)
	assert.Equal(t, "/api/todos/", f.requests[0].Path)
	assert.Empty(t, f.requests[0].Key, "reads carry no credential")
}

func TestFetchAllEmpty(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, http.StatusOK, []record{})
	})
	items, err := New(srv.URL).FetchAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFetchAllErrorStatus(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := New(srv.URL).FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestFetchAllIgnoresPayloadOnError(t *testing.T) {
	// A body that looks like data does not turn a failure into success.
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, http.StatusBadGateway, []record{rec(1, "ghost", false)})
	})
	_, err := New(srv.URL).FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
}

func TestCreate(t *testing.T) {
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, http.StatusCreated, rec(1, "New task", false))
	})
	c := New(srv.URL, WithAPIKey("test-key-123"))

	it, err := c.Create(context.Background(), "New task")
	require.NoError(t, err)
	assert.Equal(t, int64(1), it.ID)
	assert.Equal(t, "New task", it.Title)
	assert.False(t, it.Completed)

	require.Len(t, f.requests, 1)
	got := f.requests[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/todos/", got.Path)
	assert.Equal(t, "test-key-123", got.Key)
	assert.Equal(t, "application/json", got.CType)
	assert.JSONEq(t, `{"title":"New task"}`, got.Body)
}

func TestCreateWithoutKeySendsNoHeader(t *testing.T) {
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, http.StatusCreated, rec(1, "anon", false))
	})
	_, err := New(srv.URL).Create(context.Background(), "anon")
	require.NoError(t, err)
	assert.Empty(t, f.requests[0].Key)
}

func TestCreateError(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})
	_, err := New(srv.URL).Create(context.Background(), "Bad")
	assert.ErrorIs(t, err, ErrCreate)
}

func TestToggleCompletedFetchesThenFlips(t *testing.T) {
	for _, start := range []bool{false, true} {
		f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, n int) {
			if n == 0 {
				writeJSON(w, http.StatusOK, rec(1, "x", start))
				return
			}
			writeJSON(w, http.StatusOK, rec(1, "x", !start))
		})
		c := New(srv.URL, WithAPIKey("k"))

		it, err := c.ToggleCompleted(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, !start, it.Completed)

		require.Len(t, f.requests, 2)
		assert.Equal(t, http.MethodGet, f.requests[0].Method)
		assert.Equal(t, "/api/todos/1", f.requests[0].Path)
		assert.Equal(t, http.MethodPatch, f.requests[1].Method)
		assert.Equal(t, "/api/todos/1", f.requests[1].Path)
		assert.Equal(t, "k", f.requests[1].Key)
		if start {
			assert.JSONEq(t, `{"completed":false}`, f.requests[1].Body)
		} else {
			assert.JSONEq(t, `{"completed":true}`, f.requests[1].Body)
		}
	}
}

func TestToggleCompletedReadFailure(t *testing.T) {
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := New(srv.URL).ToggleCompleted(context.Background(), 999)
	assert.ErrorIs(t, err, ErrFetch)
	assert.NotErrorIs(t, err, ErrUpdate)
	assert.Len(t, f.requests, 1, "no write after a failed read")
}

func TestToggleCompletedWriteFailure(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, n int) {
		if n == 0 {
			writeJSON(w, http.StatusOK, rec(1, "x", false))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := New(srv.URL).ToggleCompleted(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUpdate)
}

func TestUpdateTitle(t *testing.T) {
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, http.StatusOK, rec(1, "Updated", false))
	})
	it, err := New(srv.URL, WithAPIKey("k")).UpdateTitle(context.Background(), 1, "Updated")
	require.NoError(t, err)
	assert.Equal(t, "Updated", it.Title)
	assert.Equal(t, http.MethodPatch, f.requests[0].Method)
	assert.JSONEq(t, `{"title":"Updated"}`, f.requests[0].Body)
}

func TestUpdateTitleError(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := New(srv.URL).UpdateTitle(context.Background(), 999, "text")
	assert.ErrorIs(t, err, ErrUpdate)
}

func TestDelete(t *testing.T) {
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, New(srv.URL, WithAPIKey("k")).Delete(context.Background(), 1))
	assert.Equal(t, http.MethodDelete, f.requests[0].Method)
	assert.Equal(t, "/api/todos/1", f.requests[0].Path)
	assert.Equal(t, "k", f.requests[0].Key)
	assert.Empty(t, f.requests[0].CType)
}

func TestDeleteError(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := New(srv.URL).Delete(context.Background(), 999)
	assert.ErrorIs(t, err, ErrDelete)
}

func TestTransportErrorKeepsKind(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
	err = New(url).Delete(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDelete)
}

func TestValidateKey(t *testing.T) {
	f, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		if r.Header.Get(APIKeyHeader) == "good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	ctx := context.Background()

	assert.False(t, New(srv.URL).ValidateKey(ctx))
	assert.Empty(t, f.requests, "no request without a credential")

	assert.True(t, New(srv.URL, WithAPIKey("good")).ValidateKey(ctx))
	assert.False(t, New(srv.URL, WithAPIKey("bad")).ValidateKey(ctx))
	assert.Equal(t, "/api/settings/validate-key", f.requests[0].Path)
}

func TestNewDefaults(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://x", New("http://x///").BaseURL())
	assert.False(t, New("").HasAPIKey())
	assert.True(t, New("", WithAPIKey(" k ")).HasAPIKey())
}

func TestWithHTTPClient(t *testing.T) {
	_, srv := newFake(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		writeJSON(w, http.StatusOK, rec(7, "seven", false))
	})
	c := New(srv.URL, WithHTTPClient(srv.Client()))
	it, err := c.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "seven", it.Title)
}
