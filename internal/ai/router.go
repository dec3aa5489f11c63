package ai

import (
	"context"
	"log/slog"
	"sync"
)

// Family is one priority slot in the failover chain: a provider family with
// zero or more credentialed adapter instances. A family with no credentials
// is simply skipped.
type Family struct {
	Name      string
	Instances []Generator
}

// Router walks provider families in configured priority order and falls back
// to the deterministic local engine when every credentialed instance fails.
// Every top-level request starts from the front of the chain: no cursor state
// is carried between independent requests, so a provider that failed on one
// request gets retried on the next.
type Router struct {
	families []Family
	local    *LocalEngine

	mu     sync.Mutex
	source Provenance
}

// NewRouter composes the failover chain. The local engine is always the
// terminal fallback and never fails.
func NewRouter(families []Family, local *LocalEngine) *Router {
	if local == nil {
		local = NewLocalEngine()
	}
	return &Router{families: families, local: local}
}

// Local exposes the deterministic fallback engine for callers that need its
// typed canned responses after a structured-output failure.
func (r *Router) Local() *LocalEngine { return r.local }

// Source returns the provenance of the most recent generation, for
// observability.
func (r *Router) Source() Provenance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Generate routes one request through the chain and never fails. An auth
// failure skips that credential for the remainder of this request but other
// families are still tried; any other failure advances to the next instance.
func (r *Router) Generate(ctx context.Context, prompt string, wantJSON bool) (string, Provenance) {
	for _, family := range r.families {
		for i, instance := range family.Instances {
			text, err := instance.Generate(ctx, prompt, wantJSON)
			if err == nil {
				prov := Provenance{
					Family:   family.Name,
					Model:    instance.ActiveModel(),
					Instance: i + 1,
					Tier:     TierCloud,
				}
				r.setSource(prov)
				slog.Debug("generation served", "family", prov.Family, "model", prov.Model, "instance", prov.Instance)
				return text, prov
			}

			if IsAuthError(err) {
				slog.Warn("provider credential rejected", "family", family.Name, "instance", i+1, "error", err)
				continue
			}
			slog.Warn("provider instance failed", "family", family.Name, "instance", i+1, "error", err)
		}
	}

	text, _ := r.local.Generate(ctx, prompt, wantJSON)
	prov := Provenance{
		Family: r.local.Family(),
		Model:  r.local.ActiveModel(),
		Tier:   TierFallback,
	}
	r.setSource(prov)
	slog.Info("generation served by local fallback")
	return text, prov
}

func (r *Router) setSource(p Provenance) {
	r.mu.Lock()
	r.source = p
	r.mu.Unlock()
}
