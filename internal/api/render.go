package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/protocol"
)

// handleRenderConfig handles POST /api/v1/render/config: builds a signed
// render grant for one stored file.
func (s *Server) handleRenderConfig(w http.ResponseWriter, r *http.Request) {
	var req protocol.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if req.FileID == "" {
		protocol.WriteFailure(w, http.StatusBadRequest, "", "fileId required")
		return
	}
	if req.Mode == "" {
		req.Mode = "view"
	}

	desc, err := s.registry.Get(r.Context(), req.FileID)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	cfg, err := s.issuer.Issue(desc, req.Mode)
	if err != nil {
		logging.Error("render grant issue failed",
			zap.String("id", req.FileID), zap.Error(err))
		protocol.WriteFailure(w, http.StatusInternalServerError, "", "failed to generate config")
		return
	}

	protocol.WriteSuccess(w, map[string]any{"config": cfg}, "config generated")
}

// handleRenderFetch handles GET /api/v1/render/files/{id}: the renderer
// redeems its grant here to pull the file bytes.
func (s *Server) handleRenderFetch(w http.ResponseWriter, r *http.Request) {
	s.streamAttachment(w, r, "inline")
}
