package synth

import (
	"context"
	"fmt"

	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/googleapis/gax-go/v2"
)

// GoogleAPI is the subset of the Google Text-to-Speech client used by GoogleSynthesizer.
type GoogleAPI interface {
	SynthesizeSpeech(
		ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption,
	) (*texttospeechpb.SynthesizeSpeechResponse, error)
}

// GoogleSynthesizer synthesizes speech with Google Cloud Text-to-Speech.
type GoogleSynthesizer struct {
	client       GoogleAPI
	voiceName    string
	languageCode string
}

// NewGoogle creates a Google synthesizer for one voice.
func NewGoogle(client GoogleAPI, voiceName, languageCode string) *GoogleSynthesizer {
	return &GoogleSynthesizer{client: client, voiceName: voiceName, languageCode: languageCode}
}

// Synthesize converts text to MP3 audio.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	response, err := g.client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.languageCode,
			Name:         g.voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech with google: %w", err)
	}

	if len(response.GetAudioContent()) == 0 {
		return nil, ErrNoAudio
	}

	return response.GetAudioContent(), nil
}
