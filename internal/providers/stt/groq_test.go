package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGroqTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(struct {
			Text string `json:"text"`
		}{Text: "groq transcription"})
	}))
	defer server.Close()

	s := &Groq{apiKey: "test-key", url: server.URL, model: "whisper-large-v3"}

	result, err := s.Transcribe(context.Background(), []byte{0, 1, 2, 3}, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "groq transcription" {
		t.Errorf("expected 'groq transcription', got %q", result)
	}
	if s.Name() != "groq-stt" {
		t.Errorf("expected groq-stt, got %s", s.Name())
	}
}

func TestGroqTranscribeAuthFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	s := &Groq{apiKey: "bad-key", url: server.URL, model: "whisper-large-v3"}
	_, err := s.Transcribe(context.Background(), []byte{0}, 16000)
	if err == nil {
		t.Fatal("expected an error")
	}
}
