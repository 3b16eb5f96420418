package handlers

import (
	"net/http"

	"github.com/visionforge/visionforge/internal/metrics"
	"github.com/visionforge/visionforge/internal/technique"
)

type techniqueRequest struct {
	Technique *technique.Technique `json:"technique"`
	// Structured appends the JSON skeleton request to built prompts.
	Structured bool   `json:"structured,omitempty"`
	Structure  string `json:"structure,omitempty"`
}

type techniquesRequest struct {
	Techniques []technique.Technique `json:"techniques"`
}

type promptResponse struct {
	Prompt string         `json:"prompt"`
	Kind   technique.Kind `json:"kind,omitempty"`
}

type techniquesResponse struct {
	Techniques []technique.Technique `json:"techniques"`
}

// Validate handles POST /v1/validate. An invalid technique is still a 200:
// the body is the itemized ValidationResult.
func (a *API) Validate(w http.ResponseWriter, r *http.Request) {
	var req techniqueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Technique == nil {
		respondWithError(w, r, required("technique"))
		return
	}

	res := technique.Validate(req.Technique.Config)
	metrics.RecordValidation(string(req.Technique.Kind()), res.Valid)
	writeJSON(w, http.StatusOK, res)
}

// BuildPrompt handles POST /v1/prompts.
func (a *API) BuildPrompt(w http.ResponseWriter, r *http.Request) {
	var req techniqueRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Technique == nil {
		respondWithError(w, r, required("technique"))
		return
	}

	kind := req.Technique.Kind()
	prompt, err := technique.Build(req.Technique.Config)
	metrics.RecordPromptBuild(string(kind), err == nil)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if req.Structured {
		prompt = technique.AddStructuredOutputRequest(prompt, req.Structure)
	}
	writeJSON(w, http.StatusOK, promptResponse{Prompt: prompt, Kind: kind})
}

func (a *API) decodeTechniques(w http.ResponseWriter, r *http.Request) ([]technique.Technique, bool) {
	var req techniquesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, r, err)
		return nil, false
	}
	if req.Techniques == nil {
		respondWithError(w, r, required("techniques"))
		return nil, false
	}
	return req.Techniques, true
}

// ValidateCombination handles POST /v1/combinations/validate.
func (a *API) ValidateCombination(w http.ResponseWriter, r *http.Request) {
	techniques, ok := a.decodeTechniques(w, r)
	if !ok {
		return
	}
	res := technique.ValidateCombination(techniques)
	metrics.RecordCombination(len(techniques), res.Compatible)
	writeJSON(w, http.StatusOK, res)
}

// ResolveConflicts handles POST /v1/combinations/resolve.
func (a *API) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	techniques, ok := a.decodeTechniques(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, techniquesResponse{Techniques: technique.ResolveConflicts(techniques)})
}

// OrderForApplication handles POST /v1/combinations/order.
func (a *API) OrderForApplication(w http.ResponseWriter, r *http.Request) {
	techniques, ok := a.decodeTechniques(w, r)
	if !ok {
		return
	}
	ordered := technique.OrderForApplication(techniques)
	if ordered == nil {
		ordered = []technique.Technique{}
	}
	writeJSON(w, http.StatusOK, techniquesResponse{Techniques: ordered})
}

// CombinedPrompt handles POST /v1/combinations/prompt.
func (a *API) CombinedPrompt(w http.ResponseWriter, r *http.Request) {
	techniques, ok := a.decodeTechniques(w, r)
	if !ok {
		return
	}
	prompt, err := technique.BuildCombinedPrompt(techniques)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promptResponse{Prompt: prompt})
}
