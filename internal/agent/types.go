// Package agent implements the lesson question-answering assistant.
package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is returned when no answering backend is configured.
var ErrUnavailable = errors.New("answering backend unavailable")

// ErrEmptyAnswer is returned when a backend replies without text.
var ErrEmptyAnswer = errors.New("empty answer")

// Config holds agent configuration.
type Config struct {
	// Address of a gRPC answer service. Takes precedence over Gemini.
	Address string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	RequestTimeout time.Duration
	// MaxMaterial bounds the lesson text forwarded as context, in bytes.
	MaxMaterial int
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		GeminiModel:    "gemini-1.5-flash",
		GeminiBaseURL:  "https://generativelanguage.googleapis.com",
		RequestTimeout: 30 * time.Second,
		MaxMaterial:    24 * 1024,
	}
}

// BuildPrompt frames the question so the model answers from the lesson only.
func BuildPrompt(question, material string) string {
	return "You are a friendly and helpful Sunday School assistant. " +
		"Your primary role is to answer questions based *only* on the provided lesson material. " +
		"Do not use any external knowledge or information outside of this context. " +
		"If the answer cannot be found in the lesson, politely state that the information " +
		"is not available in the provided text. Keep your answers clear, concise, " +
		"and appropriate for the lesson's age group.\n\n" +
		fmt.Sprintf("--- START OF LESSON CONTEXT ---\n%s\n--- END OF LESSON CONTEXT ---\n\n", material) +
		"Based on the lesson above, please answer the following question:\n" +
		fmt.Sprintf("Question: %q", question)
}
