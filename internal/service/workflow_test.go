package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileshare/internal/admission"
	"fileshare/internal/logging"
	"fileshare/internal/naming"
	"fileshare/internal/remote"
	"fileshare/internal/repository/rest"
	"fileshare/internal/storage"
)

// fakeSupabase serves the storage object API and the files table from memory.
type fakeSupabase struct {
	mu      sync.Mutex
	objects map[string][]byte
	rows    map[int64]map[string]any
	nextID  int64

	uploadStatus    int
	deleteStatus    int
	rowDeleteStatus int
	calls           map[string]int
}

func newFakeSupabase() *fakeSupabase {
	return &fakeSupabase{
		objects: map[string][]byte{},
		rows:    map[int64]map[string]any{},
		calls:   map[string]int{},
	}
}

func (f *fakeSupabase) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSupabase) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	return b, ok
}

func (f *fakeSupabase) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("apikey") != "service" || r.Header.Get("Authorization") != "Bearer service" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	const objectPrefix = "/storage/v1/object/uploads/"
	switch {
	case strings.HasPrefix(r.URL.Path, objectPrefix):
		key := strings.TrimPrefix(r.URL.Path, objectPrefix)
		switch r.Method {
		case http.MethodPost:
			f.calls["upload"]++
			if f.uploadStatus != 0 {
				w.WriteHeader(f.uploadStatus)
				_, _ = io.WriteString(w, `{"error":"storage down"}`)
				return
			}
			body, _ := io.ReadAll(r.Body)
			f.objects[key] = body
			_, _ = io.WriteString(w, `{"Key":"uploads/`+key+`"}`)
		case http.MethodDelete:
			f.calls["delete_object"]++
			if f.deleteStatus != 0 {
				w.WriteHeader(f.deleteStatus)
				return
			}
			delete(f.objects, key)
			w.WriteHeader(http.StatusOK)
		}
	case r.URL.Path == "/rest/v1/files":
		f.serveTable(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeSupabase) serveTable(w http.ResponseWriter, r *http.Request) {
	idFilter := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	switch r.Method {
	case http.MethodPost:
		f.calls["insert"]++
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.nextID++
		row["id"] = f.nextID
		f.rows[f.nextID] = row
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]map[string]any{row})
	case http.MethodGet:
		out := []map[string]any{}
		for id, row := range f.rows {
			if idFilter == "" || idFilter == strconv.FormatInt(id, 10) {
				out = append(out, row)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i]["uploaded_at"].(string) > out[j]["uploaded_at"].(string)
		})
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodDelete:
		f.calls["delete_row"]++
		if f.rowDeleteStatus != 0 {
			w.WriteHeader(f.rowDeleteStatus)
			return
		}
		id, _ := strconv.ParseInt(idFilter, 10, 64)
		delete(f.rows, id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func newWiredService(t *testing.T, fake *fakeSupabase) FileService {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := remote.NewClient(remote.NewHTTPClient(5*time.Second), srv.URL, "service")
	store, err := storage.NewSupabase(client, "uploads")
	require.NoError(t, err)

	clock := time.Unix(1700000000, 0)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return NewFileService(
		store,
		rest.NewFileREST(client, "files"),
		admission.NewPolicy(10*1024*1024, []string{"text/plain"}),
		&naming.Resolver{Strategy: naming.StrategyTimestamp, Now: now},
		Options{Now: now, Logger: logging.Discard()},
	)
}

func TestWorkflow_IngestListRetire(t *testing.T) {
	fake := newFakeSupabase()
	svc := newWiredService(t, fake)
	ctx := context.Background()

	rec, err := svc.Ingest(ctx, IngestRequest{
		Token: testToken, SessionToken: testToken,
		Filename: "a b.txt", Size: 5, ContentType: "text/plain; charset=utf-8",
		Content: strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "a b.txt", rec.DisplayName)
	assert.Equal(t, int64(5), rec.FileSize)

	files, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a b.txt", files[0].DisplayName)
	assert.Equal(t, int64(5), files[0].FileSize)

	key, err := naming.KeyFromPublicURL(files[0].PublicURL)
	require.NoError(t, err)
	stored, ok := fake.object(key)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), stored)

	id := strconv.FormatInt(rec.ID, 10)
	removed, err := svc.Retire(ctx, RetireRequest{Token: testToken, SessionToken: testToken, ID: id})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, removed.ID)
	assert.Zero(t, fake.objectCount())

	_, err = svc.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Retire(ctx, RetireRequest{Token: testToken, SessionToken: testToken, ID: id})
	assert.Equal(t, OutcomeNotFound, OutcomeOf(err))
	assert.Equal(t, 1, fake.count("delete_object"))
	assert.Equal(t, 1, fake.count("delete_row"))
}

func TestWorkflow_UploadFailureStopsBeforeInsert(t *testing.T) {
	fake := newFakeSupabase()
	fake.uploadStatus = http.StatusInternalServerError
	svc := newWiredService(t, fake)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Token: testToken, SessionToken: testToken,
		Filename: "a.txt", Size: 5, ContentType: "text/plain",
		Content: strings.NewReader("hello"),
	})

	assert.Equal(t, OutcomeUploadFailed, OutcomeOf(err))
	var re *remote.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Contains(t, re.Body, "storage down")
	assert.Equal(t, 0, fake.count("insert"))
}

func TestWorkflow_OversizeMakesNoCalls(t *testing.T) {
	fake := newFakeSupabase()
	svc := newWiredService(t, fake)

	_, err := svc.Ingest(context.Background(), IngestRequest{
		Token: testToken, SessionToken: testToken,
		Filename: "big.txt", Size: 11_000_000, ContentType: "text/plain",
		Content: strings.NewReader(""),
	})

	assert.ErrorIs(t, err, &admission.Rejection{Reason: admission.TooLarge})
	assert.Zero(t, fake.count("upload"))
	assert.Zero(t, fake.count("insert"))
}

func TestWorkflow_RetireFailuresPreserveOrGhostRow(t *testing.T) {
	ctx := context.Background()
	ingest := func(t *testing.T, svc FileService) string {
		rec, err := svc.Ingest(ctx, IngestRequest{
			Token: testToken, SessionToken: testToken,
			Filename: "keep.txt", Size: 4, ContentType: "text/plain",
			Content: strings.NewReader("keep"),
		})
		require.NoError(t, err)
		return strconv.FormatInt(rec.ID, 10)
	}

	t.Run("blob delete failure keeps the row", func(t *testing.T) {
		fake := newFakeSupabase()
		svc := newWiredService(t, fake)
		id := ingest(t, svc)
		fake.mu.Lock()
		fake.deleteStatus = http.StatusBadGateway
		fake.mu.Unlock()

		_, err := svc.Retire(ctx, RetireRequest{Token: testToken, SessionToken: testToken, ID: id})
		assert.Equal(t, OutcomeBlobDeleteFailed, OutcomeOf(err))

		rec, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "keep.txt", rec.DisplayName)
		assert.Zero(t, fake.count("delete_row"))
	})

	t.Run("row delete failure reports a ghost", func(t *testing.T) {
		fake := newFakeSupabase()
		svc := newWiredService(t, fake)
		id := ingest(t, svc)
		fake.mu.Lock()
		fake.rowDeleteStatus = http.StatusServiceUnavailable
		fake.mu.Unlock()

		_, err := svc.Retire(ctx, RetireRequest{Token: testToken, SessionToken: testToken, ID: id})
		assert.Equal(t, OutcomeRecordDeleteFailed, OutcomeOf(err))
		var inc *InconsistentStateError
		require.True(t, errors.As(err, &inc))
		assert.Equal(t, GhostRecord, inc.Kind)
		assert.Zero(t, fake.objectCount())

		_, err = svc.Get(ctx, id)
		assert.NoError(t, err)
	})
}
