package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/auth"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metadata"
	"github.com/draftdesk/draftdesk/internal/metrics"
	"github.com/draftdesk/draftdesk/internal/protocol"
)

// In-memory threshold for multipart parsing; larger parts spill to disk.
const multipartMemory = 32 << 20

// handleUpload handles POST /api/v1/attachments: a multipart batch upload
// under the files field. Files succeed or fail one by one; a bad file
// never sinks its siblings.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "invalid multipart request")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		// Single-file clients use the file field.
		files = r.MultipartForm.File["file"]
	}
	if len(files) == 0 {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "no files in request")
		return
	}
	if len(files) > s.maxUploadFiles {
		protocol.WriteFailure(w, http.StatusBadRequest, apperr.CodeTooManyFiles,
			fmt.Sprintf("too many files: %d exceeds limit of %d", len(files), s.maxUploadFiles))
		return
	}

	results := make([]protocol.UploadResult, 0, len(files))
	failures := 0
	var firstErr error

	for _, fh := range files {
		result := s.saveOne(r, fh)
		if result.Error != "" {
			failures++
			if firstErr == nil {
				firstErr = apperr.New(apperr.Code(result.ErrorCode), result.Error)
			}
		}
		results = append(results, result)
	}

	// A batch with any success reports partial results; only a batch
	// that failed entirely surfaces as an error status.
	if failures == len(files) {
		status := http.StatusInternalServerError
		if code := apperr.CodeOf(firstErr); code != "" {
			status = apperr.HTTPStatus(code)
		}
		protocol.WriteFailureData(w, status, apperr.CodeOf(firstErr), "all uploads failed", results)
		return
	}

	msg := "upload successful"
	if failures > 0 {
		msg = fmt.Sprintf("%d of %d files uploaded", len(files)-failures, len(files))
	}
	protocol.WriteSuccess(w, results, msg)
}

func (s *Server) saveOne(r *http.Request, fh *multipart.FileHeader) protocol.UploadResult {
	f, err := fh.Open()
	if err != nil {
		return protocol.UploadResult{
			FileName: fh.Filename,
			Error:    "failed to read file part",
		}
	}
	defer f.Close()

	// The registry records upload metrics; counting here as well would
	// double-count every file.
	desc, err := s.registry.Save(r.Context(), f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		logging.Warn("upload failed",
			zap.String("file", fh.Filename),
			zap.String("user", auth.Username(r.Context())),
			zap.Error(err))
		return protocol.UploadResult{
			FileName:  fh.Filename,
			Error:     err.Error(),
			ErrorCode: string(apperr.CodeOf(err)),
		}
	}

	return protocol.UploadResult{
		ID:       desc.ID,
		FileName: desc.Name,
		FileType: desc.MIMEType,
		FileSize: desc.Size,
	}
}

// handlePreview handles GET /api/v1/attachments/{id}/preview: streams the
// file for inline display.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	s.streamAttachment(w, r, "inline")
}

// handleDownload handles GET /api/v1/attachments/{id}/download: streams
// the file as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.streamAttachment(w, r, "attachment")
}

func (s *Server) streamAttachment(w http.ResponseWriter, r *http.Request, disposition string) {
	id := r.PathValue("id")

	body, desc, err := s.registry.Open(r.Context(), id)
	if err != nil {
		metrics.RecordDownload(0, false)
		protocol.WriteError(w, err)
		return
	}
	defer body.Close()

	writeFileHeaders(w, desc, disposition)
	n, err := io.Copy(w, body)
	if err != nil {
		// Headers are out; all we can do is log and cut the stream.
		logging.Warn("attachment stream interrupted",
			zap.String("id", id), zap.Int64("sent", n), zap.Error(err))
		metrics.RecordDownload(n, false)
		return
	}
	metrics.RecordDownload(n, true)
}

// writeFileHeaders sets the content headers for a file response. The
// filename is carried twice: a plain ASCII fallback and an RFC 5987
// encoded form preserving non-ASCII names.
func writeFileHeaders(w http.ResponseWriter, desc *metadata.Descriptor, disposition string) {
	contentType := desc.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(desc.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`,
		disposition, asciiFallback(desc.Name), url.PathEscape(desc.Name)))
}

func asciiFallback(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// handleDeleteAttachment handles DELETE /api/v1/attachments/{id}. Deleting
// an id that was never stored, or was already deleted, is a 404.
func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	found, err := s.registry.Delete(r.Context(), id)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}
	if !found {
		protocol.WriteFailure(w, http.StatusNotFound, apperr.CodeNotFound,
			fmt.Sprintf("file not found: %s", id))
		return
	}
	logging.Info("attachment deleted",
		zap.String("id", id),
		zap.String("user", auth.Username(r.Context())))
	protocol.WriteSuccess(w, nil, "file deleted")
}
