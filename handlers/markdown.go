package handlers

import (
	"errors"
	"log"
	"net/http"

	"wafer-be/markdown"
	"wafer-be/utils"
)

const maxPreviewBytes = 256 << 10

type previewRequest struct {
	Text    string            `json:"text"`
	Options *markdown.Options `json:"options"`
}

// PreviewMarkdown renders markdown the way stored content is rendered.
// Without options the configured defaults apply.
func (h *Handler) PreviewMarkdown(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPreviewBytes)

	var req previewRequest
	if !decode(w, r, &req) {
		return
	}

	opts := h.Markdown.Defaults()
	if req.Options != nil {
		opts = *req.Options
	}

	out, err := h.Markdown.Render(req.Text, opts)
	if err != nil {
		if errors.Is(err, markdown.ErrUnknownExtension) {
			utils.RespondError(w, http.StatusBadRequest, "INVALID_OPTIONS", err.Error(), nil)
			return
		}
		log.Printf("Failed to render markdown preview: %v", err)
		utils.RespondInternalError(w)
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"html":      out,
		"allowlist": h.Markdown.AllowList().Version,
	}, nil)
}

// GetAllowList shows the policy applied to rendered markdown
func (h *Handler) GetAllowList(w http.ResponseWriter, r *http.Request) {
	utils.RespondSuccess(w, http.StatusOK, h.Markdown.AllowList(), nil)
}
