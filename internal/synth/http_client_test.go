package synth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/pollypress/internal/core"
	"github.com/book-expert/pollypress/internal/synth"
)

const testAudioData = "fake-mp3-data"

func standardVoice() core.SynthesisConfig {
	return core.SynthesisConfig{VoiceID: "Joanna", Engine: "neural", LanguageCode: "en-US"}
}

// TestHTTPClient_Synthesize_Success verifies the request contract and the returned audio.
func TestHTTPClient_Synthesize_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(createSuccessHandler(t))
	defer server.Close()

	client := synth.NewHTTPClient(server.URL+"/", 10*time.Second, standardVoice())

	audioData, err := client.Synthesize(context.Background(), "Hello, world!")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if string(audioData) != testAudioData {
		t.Errorf("Expected audio data %q, got %q", testAudioData, string(audioData))
	}
}

func createSuccessHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	return func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", request.Method)
		}

		if request.URL.Path != "/v1/generate/speech" {
			t.Errorf("Expected /v1/generate/speech, got %s", request.URL.Path)
		}

		if accept := request.Header.Get("Accept"); accept != "audio/mpeg" {
			t.Errorf("Expected Accept audio/mpeg, got %s", accept)
		}

		var req synth.TTSRequest

		err := json.NewDecoder(request.Body).Decode(&req)
		if err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}

		expected := synth.TTSRequest{
			Text:     "Hello, world!",
			Voice:    "Joanna",
			Engine:   "neural",
			Language: "en-US",
			Format:   "mp3",
		}
		if req != expected {
			t.Errorf("Expected request %+v, got %+v", expected, req)
		}

		responseWriter.Header().Set("Content-Type", "audio/mpeg")
		responseWriter.WriteHeader(http.StatusOK)

		_, err = responseWriter.Write([]byte(testAudioData))
		if err != nil {
			t.Errorf("Failed to write mock success response: %v", err)
		}
	}
}

// TestHTTPClient_Synthesize_EmptyText verifies validation of empty text.
func TestHTTPClient_Synthesize_EmptyText(t *testing.T) {
	t.Parallel()

	client := synth.NewHTTPClient("http://localhost:8000", 10*time.Second, standardVoice())

	_, err := client.Synthesize(context.Background(), "")
	if !errors.Is(err, synth.ErrTextEmpty) {
		t.Fatalf("Expected ErrTextEmpty, got: %v", err)
	}
}

// TestHTTPClient_Synthesize_ServerError verifies structured error parsing.
func TestHTTPClient_Synthesize_ServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "application/json")
			responseWriter.WriteHeader(http.StatusInternalServerError)

			err := json.NewEncoder(responseWriter).Encode(synth.TTSErrorResponse{
				Detail:    "Model failed to load",
				ErrorCode: "MODEL_LOAD_ERROR",
			})
			if err != nil {
				t.Errorf("Failed to encode mock server error response: %v", err)
			}
		}),
	)
	defer server.Close()

	client := synth.NewHTTPClient(server.URL, 10*time.Second, standardVoice())

	_, err := client.Synthesize(context.Background(), "Hello, world!")
	if err == nil {
		t.Fatal("Expected error for server error, got nil")
	}

	for _, substring := range []string{"TTS service error", "Model failed to load", "MODEL_LOAD_ERROR"} {
		if !strings.Contains(err.Error(), substring) {
			t.Errorf("Expected error to contain %q, got: %v", substring, err)
		}
	}
}

// TestHTTPClient_Synthesize_UnstructuredError verifies the raw body fallback.
func TestHTTPClient_Synthesize_UnstructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			http.Error(responseWriter, "upstream exploded", http.StatusBadGateway)
		}),
	)
	defer server.Close()

	client := synth.NewHTTPClient(server.URL, 10*time.Second, standardVoice())

	_, err := client.Synthesize(context.Background(), "Hello")
	if err == nil || !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("Expected raw body in error, got: %v", err)
	}
}

// TestHTTPClient_Synthesize_WrongContentType verifies content type validation.
func TestHTTPClient_Synthesize_WrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "audio/wav")
			responseWriter.WriteHeader(http.StatusOK)
			_, _ = responseWriter.Write([]byte("RIFF"))
		}),
	)
	defer server.Close()

	client := synth.NewHTTPClient(server.URL, 10*time.Second, standardVoice())

	_, err := client.Synthesize(context.Background(), "Hello")
	if !errors.Is(err, synth.ErrUnexpectedContentType) {
		t.Fatalf("Expected ErrUnexpectedContentType, got: %v", err)
	}
}

// TestHTTPClient_Synthesize_EmptyAudioData verifies empty response handling.
func TestHTTPClient_Synthesize_EmptyAudioData(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			responseWriter.WriteHeader(http.StatusOK)
		}),
	)
	defer server.Close()

	client := synth.NewHTTPClient(server.URL, 10*time.Second, standardVoice())

	_, err := client.Synthesize(context.Background(), "Hello")
	if !errors.Is(err, synth.ErrNoAudio) {
		t.Fatalf("Expected ErrNoAudio, got: %v", err)
	}
}

// TestHTTPClient_Synthesize_Timeout verifies timeout handling.
func TestHTTPClient_Synthesize_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			responseWriter.WriteHeader(http.StatusOK)
			_, _ = responseWriter.Write([]byte("late"))
		}),
	)
	defer server.Close()

	client := synth.NewHTTPClient(server.URL, 50*time.Millisecond, standardVoice())

	_, err := client.Synthesize(context.Background(), "Hello")
	if err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

// TestHTTPClient_HealthCheck verifies both health check outcomes.
func TestHTTPClient_HealthCheck(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/health" {
				t.Errorf("Expected /health, got %s", request.URL.Path)
			}

			responseWriter.WriteHeader(http.StatusOK)
		}),
	)
	defer healthy.Close()

	unhealthy := httptest.NewServer(
		http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusServiceUnavailable)
		}),
	)
	defer unhealthy.Close()

	ctx := context.Background()

	err := synth.NewHTTPClient(healthy.URL, time.Second, standardVoice()).HealthCheck(ctx)
	if err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	err = synth.NewHTTPClient(unhealthy.URL, time.Second, standardVoice()).HealthCheck(ctx)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("Expected 503 health check error, got: %v", err)
	}
}
