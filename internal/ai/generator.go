package ai

import (
	"context"
)

// Generator is the capability boundary to one text-generation provider
// family instance. Implementations walk their configured model variants in
// priority order and report which variant ultimately answered.
type Generator interface {
	// Generate produces text for a prompt. When wantJSON is set the provider
	// is asked for a well-formed JSON value, though callers still run the
	// output through structured-output repair.
	Generate(ctx context.Context, prompt string, wantJSON bool) (string, error)

	// Family names the provider family ("groq", "openai", "gemini", "local").
	Family() string

	// ActiveModel is the model variant that served the last successful
	// request, for observability.
	ActiveModel() string
}

// Provenance records which provider actually produced a generation result.
type Provenance struct {
	Family   string `json:"family"`
	Model    string `json:"model"`
	Instance int    `json:"instance"`
	Tier     string `json:"tier"`
}

// Provenance tiers.
const (
	TierCloud    = "cloud"
	TierFallback = "fallback"
)
