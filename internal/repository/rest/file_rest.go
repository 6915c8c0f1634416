package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fileshare/internal/model"
	"fileshare/internal/remote"
	"fileshare/internal/repository"
)

// FileREST is a repository.FileRepository over a PostgREST style table endpoint
// at {base}/rest/v1/{table}.
type FileREST struct {
	client *remote.Client
	table  string
}

// NewFileREST creates a FileREST for table.
func NewFileREST(client *remote.Client, table string) *FileREST {
	return &FileREST{client: client, table: table}
}

var _ repository.FileRepository = (*FileREST)(nil)

// insertBody is the wire shape of a new row.
type insertBody struct {
	Filename   string `json:"filename"`
	FileSize   int64  `json:"file_size"`
	PublicURL  string `json:"public_url"`
	UploadedAt string `json:"uploaded_at"`
}

// fileRow is the wire shape of a stored row. Every field is required.
type fileRow struct {
	ID         *int64    `json:"id"`
	Filename   *string   `json:"filename"`
	FileSize   *int64    `json:"file_size"`
	PublicURL  *string   `json:"public_url"`
	UploadedAt *restTime `json:"uploaded_at"`
}

func (r fileRow) toModel() (model.FileRecord, error) {
	var missing []string
	if r.ID == nil {
		missing = append(missing, "id")
	}
	if r.Filename == nil {
		missing = append(missing, "filename")
	}
	if r.FileSize == nil {
		missing = append(missing, "file_size")
	}
	if r.PublicURL == nil {
		missing = append(missing, "public_url")
	}
	if r.UploadedAt == nil {
		missing = append(missing, "uploaded_at")
	}
	if len(missing) > 0 {
		return model.FileRecord{}, fmt.Errorf("row missing required fields: %s", strings.Join(missing, ", "))
	}
	return model.FileRecord{
		ID:          *r.ID,
		DisplayName: *r.Filename,
		FileSize:    *r.FileSize,
		PublicURL:   *r.PublicURL,
		UploadedAt:  r.UploadedAt.Time,
	}, nil
}

// Insert posts the row and asks for the stored representation back. Only 201 is success.
func (f *FileREST) Insert(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	const op = "insert file record"
	payload, err := json.Marshal(insertBody{
		Filename:   rec.DisplayName,
		FileSize:   rec.FileSize,
		PublicURL:  rec.PublicURL,
		UploadedAt: rec.UploadedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Prefer", "return=representation")

	resp, err := f.client.Do(ctx, op, http.MethodPost, f.tablePath(""), bytes.NewReader(payload), int64(len(payload)), header)
	if err != nil {
		return nil, err
	}
	if err := remote.Expect(op, resp, http.StatusCreated); err != nil {
		return nil, err
	}

	rows, err := decodeRows(resp.Body)
	if err != nil {
		return nil, remote.DecodeError(op, resp, err)
	}
	if len(rows) == 0 {
		return nil, remote.DecodeError(op, resp, errors.New("no row returned"))
	}
	return &rows[0], nil
}

// List fetches all rows ordered by uploaded_at descending.
func (f *FileREST) List(ctx context.Context) ([]model.FileRecord, error) {
	const op = "list file records"
	resp, err := f.client.Do(ctx, op, http.MethodGet, f.tablePath("order=uploaded_at.desc"), nil, -1, nil)
	if err != nil {
		return nil, err
	}
	if err := remote.Expect(op, resp, http.StatusOK); err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp.Body)
	if err != nil {
		return nil, remote.DecodeError(op, resp, err)
	}
	return rows, nil
}

// FindByID filters server side on id=eq.{id}.
func (f *FileREST) FindByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	const op = "get file record"
	resp, err := f.client.Do(ctx, op, http.MethodGet, f.tablePath(idFilter(id)+"&select=*"), nil, -1, nil)
	if err != nil {
		return nil, err
	}
	if err := remote.Expect(op, resp, http.StatusOK); err != nil {
		return nil, err
	}
	rows, err := decodeRows(resp.Body)
	if err != nil {
		return nil, remote.DecodeError(op, resp, err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrNotFound
	}
	return &rows[0], nil
}

// Delete removes rows matching id=eq.{id}; 200 and 204 are success.
func (f *FileREST) Delete(ctx context.Context, id int64) error {
	const op = "delete file record"
	resp, err := f.client.Do(ctx, op, http.MethodDelete, f.tablePath(idFilter(id)), nil, -1, nil)
	if err != nil {
		return err
	}
	return remote.Expect(op, resp, http.StatusOK, http.StatusNoContent)
}

// Ping reads at most one id to confirm the table answers.
func (f *FileREST) Ping(ctx context.Context) error {
	const op = "ping metadata store"
	resp, err := f.client.Do(ctx, op, http.MethodGet, f.tablePath("select=id&limit=1"), nil, -1, nil)
	if err != nil {
		return err
	}
	return remote.Expect(op, resp, http.StatusOK)
}

func (f *FileREST) tablePath(query string) string {
	p := "/rest/v1/" + f.table
	if query != "" {
		p += "?" + query
	}
	return p
}

func idFilter(id int64) string {
	return "id=eq." + strconv.FormatInt(id, 10)
}

func decodeRows(body []byte) ([]model.FileRecord, error) {
	var raw []fileRow
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	out := make([]model.FileRecord, 0, len(raw))
	for i, r := range raw {
		rec, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// restTime accepts timestamptz and timestamp-without-zone renderings.
type restTime struct {
	time.Time
}

var restTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *restTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("uploaded_at: %w", err)
	}
	for _, layout := range restTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("uploaded_at: unrecognised timestamp %q", s)
}
