package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/fitness-content/internal"
	"github.com/frahmantamala/fitness-content/internal/locale"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/go-chi/chi"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a plain JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteDocument writes a JSON:API document
func (h *BaseHandler) WriteDocument(w http.ResponseWriter, status int, doc Document) {
	if doc.JSONAPI == nil {
		doc.JSONAPI = jsonapiVersion
	}
	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.Logger.Error("failed to encode JSON:API document", "error", err)
	}
}

// WriteError renders err as a JSON:API error document in the request locale.
// Errors that are not *internal.AppError become 500s without leaking details.
func (h *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		appErr = internal.NewInternalError("Internal server error", err)
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", appErr.StatusCode, "path", r.URL.Path, "error", err)
	} else {
		h.Logger.Debug("http error", "status", appErr.StatusCode, "path", r.URL.Path, "error", err)
	}

	doc := ErrorDocument{Errors: ErrorObjects(r, appErr), JSONAPI: jsonapiVersion}

	w.Header().Set("Content-Type", MediaType)
	w.WriteHeader(appErr.StatusCode)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.Logger.Error("failed to encode error response", "error", err)
	}
}

// ErrorObjects converts an AppError to localized error objects, one per field error.
func ErrorObjects(r *http.Request, appErr *internal.AppError) []ErrorObject {
	ctx := r.Context()
	status := strconv.Itoa(appErr.StatusCode)

	title := locale.T(ctx, appErr.Message, appErr.Args...)
	if appErr.StatusCode >= http.StatusInternalServerError {
		title = locale.T(ctx, "Internal server error")
	}

	fields := appErr.FieldErrors()
	if len(fields) == 0 {
		return []ErrorObject{{
			Status: status,
			Code:   string(appErr.Code),
			Title:  title,
			Detail: title,
		}}
	}

	objects := make([]ErrorObject, 0, len(fields))
	for _, f := range fields {
		obj := ErrorObject{
			Status: status,
			Code:   f.Code,
			Title:  title,
			Detail: locale.T(ctx, f.Message, f.Args...),
		}
		if f.Pointer != "" || f.Parameter != "" {
			obj.Source = &ErrorSource{Pointer: f.Pointer, Parameter: f.Parameter}
		}
		objects = append(objects, obj)
	}
	return objects
}

// DecodeDocument reads a JSON:API request document.
func (h *BaseHandler) DecodeDocument(r *http.Request) (*RequestDocument, error) {
	var doc RequestDocument
	if err := h.DecodeJSON(r, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeAttributes unmarshals the attributes member of doc into v.
func DecodeAttributes(doc *RequestDocument, v any) error {
	if len(doc.Data.Attributes) == 0 {
		return nil
	}
	if err := json.Unmarshal(doc.Data.Attributes, v); err != nil {
		return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	return nil
}

// DecodeJSON reads a JSON body into v.
func (h *BaseHandler) DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody)
		}
		return internal.NewValidationError("Invalid request body", internal.ErrCodeInvalidBody).WithCause(err)
	}
	return nil
}

// URLID returns the numeric chi URL parameter name, or a 404 when it is not a positive integer.
func (h *BaseHandler) URLID(r *http.Request, name string) (uint, error) {
	id := ParseID(chi.URLParam(r, name))
	if id == 0 {
		return 0, internal.NewNotFoundError("Resource not found", internal.ErrCodeResourceNotFound)
	}
	return id, nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return BearerToken(r)
}

func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}

	return strings.TrimSpace(authHeader[7:])
}

// Authorizer is the policy gate as seen by handlers.
type Authorizer interface {
	Authorize(ctx context.Context, actor *internal.Principal, resource, action string, targetID uint) error
}

// Can asks a for permission to perform action on resource for the request principal.
func Can(r *http.Request, a Authorizer, resource, action string, targetID uint) error {
	return a.Authorize(r.Context(), internal.PrincipalFromContext(r.Context()), resource, action, targetID)
}

// Created writes a 201 document with a Location header pointing at the resource.
func (h *BaseHandler) Created(w http.ResponseWriter, location string, doc Document) {
	w.Header().Set("Location", location)
	h.WriteDocument(w, http.StatusCreated, doc)
}
