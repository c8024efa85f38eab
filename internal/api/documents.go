package api

import (
	"fmt"
	"net/http"

	"github.com/draftdesk/draftdesk/internal/apperr"
	"github.com/draftdesk/draftdesk/internal/protocol"
)

// handleListDocuments handles GET /api/v1/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	infos, err := s.documents.List(r.Context())
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	docs := make([]protocol.DocumentInfo, 0, len(infos))
	for _, info := range infos {
		docs = append(docs, protocol.DocumentInfo{Name: info.Name, Size: info.Size})
	}
	protocol.WriteSuccess(w, map[string]any{"documents": docs}, "")
}

// handleDeleteDocument handles DELETE /api/v1/documents/{name}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	found, err := s.documents.Delete(r.Context(), name)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}
	if !found {
		protocol.WriteFailure(w, http.StatusNotFound, apperr.CodeNotFound,
			fmt.Sprintf("document not found: %s", name))
		return
	}
	protocol.WriteSuccess(w, nil, "document deleted")
}
