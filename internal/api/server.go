// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/draftdesk/draftdesk/internal/auth"
	"github.com/draftdesk/draftdesk/internal/collab"
	"github.com/draftdesk/draftdesk/internal/logging"
	"github.com/draftdesk/draftdesk/internal/metrics"
	"github.com/draftdesk/draftdesk/internal/registry"
	"github.com/draftdesk/draftdesk/internal/render"
)

// Server is the HTTP server.
type Server struct {
	registry       *registry.Registry
	sessions       *auth.SessionAuth
	renderVerifier *auth.Verifier
	issuer         *render.Issuer
	documents      collab.DocumentStore
	hub            *collab.Hub
	maxUploadFiles int
}

// NewServer creates a new server.
func NewServer(
	reg *registry.Registry,
	sessions *auth.SessionAuth,
	renderVerifier *auth.Verifier,
	issuer *render.Issuer,
	documents collab.DocumentStore,
	hub *collab.Hub,
	maxUploadFiles int,
) *Server {
	return &Server{
		registry:       reg,
		sessions:       sessions,
		renderVerifier: renderVerifier,
		issuer:         issuer,
		documents:      documents,
		hub:            hub,
		maxUploadFiles: maxUploadFiles,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", s.sessions.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/verify", s.sessions.HandleVerify)
	mux.HandleFunc("POST /api/v1/auth/refresh", s.sessions.HandleRefresh)

	// Session-protected endpoints
	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/v1/attachments", s.handleUpload)
	protected.HandleFunc("GET /api/v1/attachments/{id}/preview", s.handlePreview)
	protected.HandleFunc("GET /api/v1/attachments/{id}/download", s.handleDownload)
	protected.HandleFunc("DELETE /api/v1/attachments/{id}", s.handleDeleteAttachment)
	protected.HandleFunc("POST /api/v1/render/config", s.handleRenderConfig)
	protected.HandleFunc("GET /api/v1/collaboration", s.hub.ServeWS)
	protected.HandleFunc("GET /api/v1/documents", s.handleListDocuments)
	protected.HandleFunc("DELETE /api/v1/documents/{name}", s.handleDeleteDocument)

	authed := s.sessions.Verifier().Middleware(protected)
	mux.Handle("/api/v1/attachments", authed)
	mux.Handle("/api/v1/attachments/", authed)
	mux.Handle("/api/v1/render/config", authed)
	mux.Handle("/api/v1/collaboration", authed)
	mux.Handle("/api/v1/documents", authed)
	mux.Handle("/api/v1/documents/", authed)

	// Render-domain endpoint: only tokens minted by the grant issuer may
	// redeem a fetch here.
	mux.Handle("GET /api/v1/render/files/{id}",
		s.renderVerifier.Middleware(http.HandlerFunc(s.handleRenderFetch)))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}
