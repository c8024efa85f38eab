// Package render mints signed configuration grants that let an external
// document renderer pull one file from the gateway.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/draftdesk/draftdesk/internal/metadata"
	"github.com/draftdesk/draftdesk/internal/metrics"
)

// Extension tables deciding how the renderer treats a file. The renderer
// only understands the cell, slide and word kinds; images and videos ride
// on word and get flagged separately for the client.
var (
	cellExtensions  = extSet("xls", "xlsx", "ods", "csv")
	slideExtensions = extSet("ppt", "pptx", "odp")
	imageExtensions = extSet("jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp")
	videoExtensions = extSet("mp4", "avi", "mov", "wmv", "flv", "webm", "mkv")
)

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// Permissions declares what the renderer may let the user do.
type Permissions struct {
	Edit     bool `json:"edit"`
	Download bool `json:"download"`
	Print    bool `json:"print"`
	Comment  bool `json:"comment"`
}

// Document describes the file the grant covers. Key is the version key:
// it changes whenever the stored bytes change size, forcing the renderer
// to drop its cache.
type Document struct {
	FileType    string      `json:"fileType"`
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Permissions Permissions `json:"permissions"`
}

// EditorUser identifies the acting user to the renderer.
type EditorUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Customization carries renderer UI switches.
type Customization struct {
	Autosave  bool `json:"autosave"`
	Forcesave bool `json:"forcesave"`
}

// EditorConfig carries the renderer's editor settings.
type EditorConfig struct {
	Mode          string        `json:"mode"`
	Lang          string        `json:"lang"`
	Customization Customization `json:"customization"`
	User          EditorUser    `json:"user"`
}

// FileTypeInfo flags media files the renderer cannot truly edit; the
// client uses it to pick a native viewer instead.
type FileTypeInfo struct {
	IsImage           bool   `json:"isImage"`
	IsVideo           bool   `json:"isVideo"`
	OriginalExtension string `json:"originalExtension"`
}

// Config is the full grant handed to the renderer client. Token is the
// HS256 signature over the rest of the config under the render secret.
type Config struct {
	Document     Document     `json:"document"`
	DocumentType string       `json:"documentType"`
	EditorConfig EditorConfig `json:"editorConfig"`
	DownloadURL  string       `json:"downloadUrl"`
	FileTypeInfo FileTypeInfo `json:"fileTypeInfo"`
	Token        string       `json:"token,omitempty"`
}

// Issuer signs render grants scoped to a single file and mode.
type Issuer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
}

// NewIssuer creates an issuer. baseURL is the public address the renderer
// uses to reach the gateway's fetch endpoint.
func NewIssuer(secret, baseURL string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
	}
}

// Issue builds and signs a grant for one file. mode is "view" or "edit";
// anything but "edit" falls back to view. Edit is always withheld for
// image and video files regardless of the requested mode.
func (i *Issuer) Issue(desc *metadata.Descriptor, mode string) (*Config, error) {
	ext := strings.ToLower(strings.TrimPrefix(desc.Extension, "."))

	documentType := "word"
	switch {
	case cellExtensions[ext]:
		documentType = "cell"
	case slideExtensions[ext]:
		documentType = "slide"
	}

	isImage := imageExtensions[ext]
	isVideo := videoExtensions[ext]
	canEdit := mode == "edit" && !isImage && !isVideo

	fetchURL := fmt.Sprintf("%s/api/v1/render/files/%s", i.baseURL, desc.ID)

	editorMode := "view"
	if canEdit {
		editorMode = "edit"
	}

	cfg := &Config{
		Document: Document{
			FileType: ext,
			Key:      fmt.Sprintf("%s-%d", desc.ID, desc.Size),
			Title:    desc.Name,
			URL:      fetchURL,
			Permissions: Permissions{
				Edit:     canEdit,
				Download: true,
				Print:    !isVideo,
				Comment:  mode != "view" && !isImage && !isVideo,
			},
		},
		DocumentType: documentType,
		EditorConfig: EditorConfig{
			Mode: editorMode,
			Lang: "en",
			Customization: Customization{
				Autosave:  canEdit,
				Forcesave: false,
			},
			User: EditorUser{ID: "preview-user", Name: "Preview User"},
		},
		DownloadURL: fetchURL,
		FileTypeInfo: FileTypeInfo{
			IsImage:           isImage,
			IsVideo:           isVideo,
			OriginalExtension: ext,
		},
	}

	tokenStr, err := i.sign(cfg)
	if err != nil {
		return nil, fmt.Errorf("signing render grant: %w", err)
	}
	cfg.Token = tokenStr

	metrics.RecordGrantIssued(editorMode)
	return cfg, nil
}

// sign serializes the config into JWT claims, bounds them with an exp
// claim and signs the result with the render secret.
func (i *Issuer) sign(cfg *Config) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return "", err
	}
	now := time.Now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(i.ttl).Unix()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
