package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deletexiumu/screen-analyzer/errs"
)

// DataResponse wraps a single resource.
type DataResponse[T any] struct {
	Data T `json:"data"`
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// ErrorResponse is the standard error shape, keyed by the closed Kind enum
// from errs so the host can branch on it without parsing the message.
type ErrorResponse struct {
	Error struct {
		Kind    errs.Kind `json:"kind"`
		Message string    `json:"message"`
	} `json:"error"`
}

func respondData[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, DataResponse[T]{Data: data})
}

func respondList[T any](c *gin.Context, data []T) {
	if data == nil {
		data = []T{}
	}
	c.JSON(http.StatusOK, ListResponse[T]{Data: data})
}

func respondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// respondError maps an error to a status code via its errs.Kind, falling
// back to 500 for anything that didn't come from a typed *errs.Error.
func respondError(c *gin.Context, err error) {
	var e *errs.Error
	if !errors.As(err, &e) {
		e = &errs.Error{Kind: errs.Internal, Message: err.Error()}
	}

	resp := ErrorResponse{}
	resp.Error.Kind = e.Kind
	resp.Error.Message = e.Message
	c.JSON(statusForKind(e.Kind), resp)
}

func statusForKind(k errs.Kind) int {
	switch k {
	case errs.NotFound:
		return http.StatusNotFound
	case errs.ConfigInvalid, errs.SessionTooShort:
		return http.StatusBadRequest
	case errs.PermissionDenied:
		return http.StatusForbidden
	case errs.DatabaseBusy, errs.LLMRateLimited:
		return http.StatusServiceUnavailable
	case errs.LLMAuth:
		return http.StatusUnauthorized
	case errs.CaptureUnavailable, errs.StorageFull, errs.StorageIO,
		errs.DatabaseCorrupt, errs.EncoderMissing, errs.EncoderFailed,
		errs.EncoderTimeout, errs.LLMUnavailable, errs.LLMBadSchema, errs.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondBadRequest(c *gin.Context, message string) {
	respondError(c, errs.New(errs.ConfigInvalid, message))
}
