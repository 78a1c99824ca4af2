package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// multipartMemory is kept in memory per request; larger parts spill to temp files.
const multipartMemory = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// parseForm reads a multipart or url-encoded body, bounded by maxUploadBytes.
// The returned cleanup removes temp files and must always be called.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return cleanup, errBodyTooLarge
		}
		return cleanup, err
	}
	return cleanup, nil
}

// formFile returns the named file as an Upload, or nil when the field is absent.
func formFile(r *http.Request, field string) (*simpleblog.Upload, func(), error) {
	noop := func() {}
	if r.MultipartForm == nil {
		return nil, noop, nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	if header.Size == 0 {
		file.Close()
		return nil, noop, nil
	}

	contentType, err := sniffContentType(file, header)
	if err != nil {
		file.Close()
		return nil, noop, err
	}

	return &simpleblog.Upload{
		Reader:      file,
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	}, func() { file.Close() }, nil
}

// sniffContentType trusts the part header unless it is missing or generic.
func sniffContentType(file multipart.File, header *multipart.FileHeader) (string, error) {
	declared := header.Header.Get("Content-Type")
	if declared != "" && !strings.HasPrefix(declared, "application/octet-stream") {
		return declared, nil
	}

	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func badForm(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		renderError(w, r, "parse form", simpleblog.NewValidationError("file", "File too large"))
		return
	}
	renderError(w, r, "parse form", simpleblog.NewValidationError("body", "Invalid request body"))
}
