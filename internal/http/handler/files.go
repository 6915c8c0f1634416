package handler

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"fileshare/internal/model"
	"fileshare/internal/service"
)

// fileResponse is a FileRecord as the API renders it.
type fileResponse struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	SizeHuman  string    `json:"size_human"`
	PublicURL  string    `json:"public_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type listResponse struct {
	Files []fileResponse `json:"files"`
	Total int            `json:"total"`
}

// mutationResponse answers a successful upload or delete.
type mutationResponse struct {
	Message string       `json:"message"`
	Type    string       `json:"type"`
	File    fileResponse `json:"file"`
}

func toFileResponse(f model.FileRecord) fileResponse {
	return fileResponse{
		ID:         f.ID,
		Filename:   f.DisplayName,
		FileSize:   f.FileSize,
		SizeHuman:  f.HumanSize(),
		PublicURL:  f.PublicURL,
		UploadedAt: f.UploadedAt,
	}
}

func toFileResponses(files []model.FileRecord) []fileResponse {
	out := make([]fileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	return out
}

// ListFiles godoc
// @Summary List files
// @Description Returns every file record, newest first. The listing is fetched fresh on each call.
// @Tags files
// @Produce json
// @Success 200 {object} listResponse
// @Failure 502 {object} errorPayload
// @Router /files [get]
func ListFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		files, err := svc.List(c.UserContext())
		if err != nil {
			status, code, msg := upstreamOrInternal(err)
			return writeError(c, status, code, msg)
		}
		return c.JSON(listResponse{Files: toFileResponses(files), Total: len(files)})
	}
}

// GetFile godoc
// @Summary Get a file record
// @Tags files
// @Produce json
// @Param id path int true "File ID"
// @Success 200 {object} fileResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /files/{id} [get]
func GetFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := svc.Get(c.UserContext(), c.Params("id"))
		switch {
		case err == nil:
			return c.JSON(toFileResponse(*rec))
		case errors.Is(err, service.ErrInvalidIdentifier):
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid file id")
		case errors.Is(err, service.ErrNotFound):
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		default:
			status, code, msg := upstreamOrInternal(err)
			return writeError(c, status, code, msg)
		}
	}
}

// UploadFile godoc
// @Summary Upload a file
// @Description Stores the bytes in object storage, then records its metadata. The MIME type is detected from the content.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param csrf_token formData string false "Anti-forgery token, or send X-CSRF-Token"
// @Success 201 {object} mutationResponse
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 413 {object} errorPayload
// @Failure 415 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /files [post]
func UploadFile(svc service.FileService, sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeMutationError(c, svc, fiber.StatusBadRequest, "FILE_REQUIRED", "no file selected")
		}

		f, err := fh.Open()
		if err != nil {
			return writeMutationError(c, svc, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		mt, err := mimetype.DetectReader(f)
		if err != nil {
			return writeMutationError(c, svc, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return writeMutationError(c, svc, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
		}

		rec, err := svc.Ingest(c.UserContext(), service.IngestRequest{
			Token:        submittedCSRFToken(c),
			SessionToken: sessionCSRFToken(c, sessions),
			Filename:     fh.Filename,
			Size:         fh.Size,
			ContentType:  mt.String(),
			Content:      f,
		})
		if err != nil {
			status, code, msg := classifyWorkflowError(err)
			return writeMutationError(c, svc, status, code, msg)
		}

		return c.Status(fiber.StatusCreated).JSON(mutationResponse{
			Message: fmt.Sprintf("File %q uploaded successfully", rec.DisplayName),
			Type:    "success",
			File:    toFileResponse(*rec),
		})
	}
}

// RetireFile godoc
// @Summary Delete a file
// @Description Deletes the stored object, then its metadata row, and returns the removed record.
// @Tags files
// @Produce json
// @Param id path int true "File ID"
// @Param X-CSRF-Token header string false "Anti-forgery token, or send the csrf_token form field"
// @Success 200 {object} mutationResponse
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /files/{id} [delete]
func RetireFile(svc service.FileService, sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := svc.Retire(c.UserContext(), service.RetireRequest{
			Token:        submittedCSRFToken(c),
			SessionToken: sessionCSRFToken(c, sessions),
			ID:           c.Params("id"),
		})
		if err != nil {
			status, code, msg := classifyWorkflowError(err)
			return writeMutationError(c, svc, status, code, msg)
		}

		return c.JSON(mutationResponse{
			Message: fmt.Sprintf("File %q deleted successfully", rec.DisplayName),
			Type:    "success",
			File:    toFileResponse(*rec),
		})
	}
}
