package synth

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/book-expert/pollypress/internal/config"
	"github.com/book-expert/pollypress/internal/core"
)

func noopClose() error { return nil }

// HealthChecker is implemented by backends that expose a liveness endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckHealth calls HealthCheck on synthesizer when it is a HealthChecker. Managed backends
// have no health endpoint and always pass.
func CheckHealth(ctx context.Context, synthesizer core.Synthesizer) error {
	checker, ok := synthesizer.(HealthChecker)
	if !ok {
		return nil
	}

	err := checker.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("synthesis backend is not healthy: %w", err)
	}

	return nil
}

// New builds the synthesizer selected by cfg.Backend. The returned close
// function releases backend connections and is always non-nil.
func New(ctx context.Context, cfg config.SynthesisConfig, awsConfig aws.Config) (core.Synthesizer, func() error, error) {
	voice := core.SynthesisConfig{
		VoiceID:      cfg.VoiceID,
		Engine:       cfg.Engine,
		LanguageCode: cfg.LanguageCode,
	}

	switch cfg.Backend {
	case config.SynthesisBackendPolly:
		return NewPollyFromConfig(awsConfig, voice), noopClose, nil
	case config.SynthesisBackendHTTP:
		return NewHTTPClient(cfg.ServiceURL, cfg.Timeout(), voice), noopClose, nil
	case config.SynthesisBackendGoogle:
		client, err := texttospeech.NewClient(ctx)
		if err != nil {
			return nil, noopClose, fmt.Errorf("failed to create google tts client: %w", err)
		}

		return NewGoogle(client, cfg.GoogleVoiceName, cfg.LanguageCode), client.Close, nil
	default:
		return nil, noopClose, fmt.Errorf("%w: %q", config.ErrUnknownSynthesisBackend, cfg.Backend)
	}
}
