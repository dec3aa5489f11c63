package ai

import (
	"context"
	"log/slog"
)

// ChainConfig lists provider credentials in failover priority order. Each
// list becomes one instance slot inside its family; empty lists leave the
// family out of the chain entirely.
type ChainConfig struct {
	GroqKeys   []string
	OpenAIKeys []string
	GeminiKeys []string
}

// BuildChain assembles the failover router from configured credentials.
// Priority is Groq, then OpenAI, then Gemini, then the local engine. A
// credential that cannot even construct its client is logged and skipped
// rather than wedging startup.
func BuildChain(ctx context.Context, cfg ChainConfig) *Router {
	var families []Family

	if len(cfg.GroqKeys) > 0 {
		family := Family{Name: "groq"}
		for _, key := range cfg.GroqKeys {
			family.Instances = append(family.Instances, NewGroq(key))
		}
		families = append(families, family)
	}

	if len(cfg.OpenAIKeys) > 0 {
		family := Family{Name: "openai"}
		for _, key := range cfg.OpenAIKeys {
			family.Instances = append(family.Instances, NewOpenAI(key))
		}
		families = append(families, family)
	}

	if len(cfg.GeminiKeys) > 0 {
		family := Family{Name: "gemini"}
		for i, key := range cfg.GeminiKeys {
			client, err := NewGemini(ctx, key)
			if err != nil {
				slog.Warn("skipping gemini credential", "instance", i+1, "error", err)
				continue
			}
			family.Instances = append(family.Instances, client)
		}
		if len(family.Instances) > 0 {
			families = append(families, family)
		}
	}

	slog.Info("ai failover chain assembled", "families", len(families))
	return NewRouter(families, NewLocalEngine())
}
