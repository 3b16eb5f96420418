package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/visionforge/visionforge/internal/ailink"
	apperrors "github.com/visionforge/visionforge/internal/errors"
	"github.com/visionforge/visionforge/internal/response"
	"github.com/visionforge/visionforge/internal/technique"
)

type processRequest struct {
	Text string `json:"text"`
	// Format, when set, adds a format check to the response.
	Format response.Format `json:"format,omitempty"`
	HTML   bool            `json:"html,omitempty"`
}

type processResponse struct {
	response.Processed
	FormatValid *bool  `json:"formatValid,omitempty"`
	HTML        string `json:"html,omitempty"`
}

// ProcessResponse handles POST /v1/responses.
func (a *API) ProcessResponse(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	out := processResponse{Processed: response.Process(req.Text)}
	switch req.Format {
	case response.FormatAny:
	case response.FormatJSON, response.FormatText, response.FormatStructured:
		valid := response.ValidateFormat(out.Text, req.Format)
		out.FormatValid = &valid
	default:
		respondWithError(w, r, apperrors.NewInvalidInputError("format must be json, text or structured"))
		return
	}
	if req.HTML {
		out.HTML = response.FormatCodeBlocksHTML(out.Text)
	}
	writeJSON(w, http.StatusOK, out)
}

// Models handles GET /v1/models.
func (a *API) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": ailink.SupportedModels()})
}

type techniqueInfo struct {
	Kind           technique.Kind   `json:"kind"`
	CompatibleWith []technique.Kind `json:"compatibleWith"`
}

// Techniques handles GET /v1/techniques: every kind with its compatible
// kinds, plus the few-shot templates.
func (a *API) Techniques(w http.ResponseWriter, r *http.Request) {
	infos := make([]techniqueInfo, 0, len(technique.Kinds))
	for _, k := range technique.Kinds {
		infos = append(infos, techniqueInfo{Kind: k, CompatibleWith: technique.CompatibleWith(k)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"techniques":       infos,
		"fewShotTemplates": technique.FewShotTemplates(),
	})
}

// ListTemplates handles GET /v1/templates?category=.
func (a *API) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if a.Templates == nil {
		unavailable(w, r, "template registry")
		return
	}
	templates := a.Templates.List(r.URL.Query().Get("category"))
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// Template handles GET /v1/templates/{id}. With ?instantiate=<name> it
// returns a fresh workflow built from the template instead.
func (a *API) Template(w http.ResponseWriter, r *http.Request) {
	if a.Templates == nil {
		unavailable(w, r, "template registry")
		return
	}
	id := chi.URLParam(r, "id")
	tmpl, err := a.Templates.Get(id)
	if err != nil {
		respondWithError(w, r, apperrors.NewNotFoundError(err.Error()))
		return
	}

	if name, ok := r.URL.Query()["instantiate"]; ok {
		wf, err := tmpl.Instantiate(strings.Join(name, " "))
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wf)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}
