// Package synth provides the core.Synthesizer implementations: Amazon Polly,
// Google Cloud Text-to-Speech, and a standalone TTS HTTP service. Every
// implementation returns MP3 audio.
package synth

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/book-expert/pollypress/internal/core"
)

var (
	// ErrTextEmpty indicates that there is nothing to synthesize.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrNoAudio indicates that the synthesis backend returned no audio.
	ErrNoAudio = errors.New("no audio stream returned from synthesis")
)

// PollyAPI is the subset of the Polly client used by PollySynthesizer.
type PollyAPI interface {
	SynthesizeSpeech(
		ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options),
	) (*polly.SynthesizeSpeechOutput, error)
}

// PollySynthesizer synthesizes speech with Amazon Polly.
type PollySynthesizer struct {
	client PollyAPI
	config core.SynthesisConfig
}

// NewPolly creates a Polly synthesizer with fixed voice parameters.
func NewPolly(client PollyAPI, cfg core.SynthesisConfig) *PollySynthesizer {
	return &PollySynthesizer{client: client, config: cfg}
}

// NewPollyFromConfig builds the Polly client from a loaded AWS configuration.
func NewPollyFromConfig(awsConfig aws.Config, cfg core.SynthesisConfig) *PollySynthesizer {
	return NewPolly(polly.NewFromConfig(awsConfig), cfg)
}

// Synthesize converts text to MP3 audio.
func (p *PollySynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	output, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(p.config.VoiceID),
		Engine:       types.Engine(p.config.Engine),
		LanguageCode: types.LanguageCode(p.config.LanguageCode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech with polly: %w", err)
	}

	if output.AudioStream == nil {
		return nil, ErrNoAudio
	}

	audio, readErr := io.ReadAll(output.AudioStream)
	closeErr := output.AudioStream.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read polly audio stream: %w", readErr)
	}

	if closeErr != nil {
		return nil, fmt.Errorf("failed to close polly audio stream: %w", closeErr)
	}

	if len(audio) == 0 {
		return nil, ErrNoAudio
	}

	return audio, nil
}
