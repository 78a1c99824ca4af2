package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// MessageResponse is the body of every error and of acknowledgement-only responses.
type MessageResponse struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"message"`
}

// Render implements render.Renderer
func (m *MessageResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, m.HTTPStatusCode)
	return nil
}

func message(status int, msg string) render.Renderer {
	return &MessageResponse{HTTPStatusCode: status, Message: msg}
}

// errorResponse maps a service error to its status and client-facing message.
// Internal details never leave the server.
func errorResponse(err error) *MessageResponse {
	var validation *simpleblog.ValidationError
	var assetErr *simpleblog.AssetError

	switch {
	case errors.As(err, &validation):
		return &MessageResponse{HTTPStatusCode: http.StatusBadRequest, Message: validation.Message}
	case errors.Is(err, simpleblog.ErrEmailTaken):
		return &MessageResponse{HTTPStatusCode: http.StatusBadRequest, Message: "User already exists"}
	case errors.Is(err, simpleblog.ErrInvalidCredentials):
		return &MessageResponse{HTTPStatusCode: http.StatusBadRequest, Message: "Invalid credentials"}
	case errors.Is(err, simpleblog.ErrUnauthenticated):
		return &MessageResponse{HTTPStatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	case errors.Is(err, simpleblog.ErrNotOwner):
		return &MessageResponse{HTTPStatusCode: http.StatusForbidden, Message: "Not authorized"}
	case errors.Is(err, simpleblog.ErrIdentityNotFound):
		return &MessageResponse{HTTPStatusCode: http.StatusNotFound, Message: "User not found"}
	case errors.Is(err, simpleblog.ErrPostNotFound):
		return &MessageResponse{HTTPStatusCode: http.StatusNotFound, Message: "Blog not found"}
	case errors.Is(err, simpleblog.ErrUploadFailed) && errors.As(err, &assetErr):
		if strings.HasSuffix(assetErr.Folder, "/"+simpleblog.FolderAvatars) {
			return &MessageResponse{HTTPStatusCode: http.StatusInternalServerError, Message: "Avatar upload failed"}
		}
		return &MessageResponse{HTTPStatusCode: http.StatusInternalServerError, Message: "Image upload failed"}
	default:
		return &MessageResponse{HTTPStatusCode: http.StatusInternalServerError, Message: "Internal Server Error"}
	}
}

func renderError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	if resp.HTTPStatusCode >= http.StatusInternalServerError {
		slog.Error("Failed to "+op, "error", err)
	} else {
		slog.Debug("Request rejected", "op", op, "status", resp.HTTPStatusCode, "error", err)
	}
	if err := render.Render(w, r, resp); err != nil {
		slog.Error("Failed to render error response", "error", err)
	}
}
