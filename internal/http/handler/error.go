package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/admission"
	"fileshare/internal/http/middleware"
	"fileshare/internal/remote"
	"fileshare/internal/service"
)

// errorPayload is the standard error body. Files carries the current listing
// when a mutation fails, so a failed upload or delete never hides what exists.
type errorPayload struct {
	RequestID string         `json:"request_id"`
	Error     errorEnvelope  `json:"error"`
	Files     []fileResponse `json:"files,omitempty"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "UPLOAD_FAILED")
// - message: human-readable message; remote status and body may appear, stack traces never do
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// writeMutationError reports a failed ingest or retire together with a freshly
// fetched listing. A listing failure only drops the files field.
func writeMutationError(c *fiber.Ctx, svc service.FileService, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error:     errorEnvelope{Code: code, Message: message},
	}
	if files, err := svc.List(context.WithoutCancel(c.UserContext())); err == nil {
		res.Files = toFileResponses(files)
	}
	return c.Status(status).JSON(res)
}

// classifyWorkflowError maps a workflow failure to status, code and message.
func classifyWorkflowError(err error) (int, string, string) {
	var rej *admission.Rejection
	if errors.As(err, &rej) {
		msg := rej.Error()
		if rej.Detail != "" {
			msg = rej.Detail
		}
		switch rej.Reason {
		case admission.IntegrityMismatch:
			return fiber.StatusForbidden, "INVALID_TOKEN", msg
		case admission.TooLarge:
			return fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", msg
		case admission.UnsupportedType:
			return fiber.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE", msg
		}
	}

	var we *service.WorkflowError
	if !errors.As(err, &we) {
		return upstreamOrInternal(err)
	}

	msg := we.Err.Error()
	if we.Inconsistency != nil {
		msg += "; " + we.Inconsistency.Error()
	}
	switch we.Outcome {
	case service.OutcomeRejectedByPolicy:
		return fiber.StatusBadRequest, "FILE_REQUIRED", msg
	case service.OutcomeInvalidIdentifier:
		return fiber.StatusBadRequest, "INVALID_ID", "invalid file id"
	case service.OutcomeNotFound:
		return fiber.StatusNotFound, "NOT_FOUND", "file not found"
	case service.OutcomeUploadFailed:
		return fiber.StatusBadGateway, "UPLOAD_FAILED", "upload failed: " + msg
	case service.OutcomeMetadataFailed:
		return fiber.StatusBadGateway, "METADATA_FAILED", "saving file metadata failed: " + msg
	case service.OutcomeLookupFailed:
		return fiber.StatusBadGateway, "LOOKUP_FAILED", "looking up file failed: " + msg
	case service.OutcomeBlobDeleteFailed:
		return fiber.StatusBadGateway, "DELETE_FAILED", "deleting file from storage failed: " + msg
	case service.OutcomeRecordDeleteFailed:
		return fiber.StatusBadGateway, "RECORD_DELETE_FAILED", "deleting file metadata failed: " + msg
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

// upstreamOrInternal reports remote failures as 502 with their description and
// hides everything else behind a generic 500.
func upstreamOrInternal(err error) (int, string, string) {
	var te *remote.TransportError
	var re *remote.RemoteError
	if errors.As(err, &te) || errors.As(err, &re) {
		return fiber.StatusBadGateway, "UPSTREAM_ERROR", err.Error()
	}
	return fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "FILE_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
