package service

import (
	"context"
	"fmt"
	"strings"

	"cerebro/internal/llm"
	"cerebro/internal/rag"
)

// AnswerEngine produces an answer and its supporting context for a question.
type AnswerEngine interface {
	Ask(ctx context.Context, question string, history []llm.Message) (string, []rag.Candidate, error)
}

// AskResult is the outcome of answering a question.
type AskResult struct {
	Answer    string
	SessionID string
	Sources   []rag.Candidate
}

// AskService answers questions against the indexed vault.
type AskService interface {
	Ask(ctx context.Context, question, sessionID string) (*AskResult, error)
}

type askService struct {
	engine   AnswerEngine
	sessions *SessionStore
	ready    func() bool
}

func NewAskService(engine AnswerEngine, sessions *SessionStore, ready func() bool) AskService {
	return &askService{engine: engine, sessions: sessions, ready: ready}
}

func (s *askService) Ask(ctx context.Context, question, sessionID string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ValidationError{Field: "question", Message: "question cannot be empty"}
	}
	if s.ready != nil && !s.ready() {
		return nil, ErrNotReady
	}

	if sessionID == "" {
		sessionID = s.sessions.Create()
	}
	history := s.sessions.History(sessionID)

	answer, sources, err := s.engine.Ask(ctx, question, history)
	if err != nil {
		return nil, fmt.Errorf("failed to answer question: %w", err)
	}

	s.sessions.Append(sessionID, question, answer)

	return &AskResult{
		Answer:    answer,
		SessionID: sessionID,
		Sources:   sources,
	}, nil
}
