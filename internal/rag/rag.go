package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"rag-backend/internal/models"
)

// DocumentStore persists content units and finds the ones most similar to a query.
type DocumentStore interface {
	Add(ctx context.Context, units []models.ContentUnit) error
	Search(ctx context.Context, query string, k int, filter map[string]string) ([]models.ContentUnit, error)
}

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Request is everything one question needs. The pipeline keeps no state
// between requests; history is supplied by the caller.
type Request struct {
	Question string
	// Source restricts retrieval to units from one file. Empty means no filter.
	Source  string
	History []models.ChatEntry
}

type RAG struct {
	assembler *Assembler
	llm       Completer
}

func NewRAG(assembler *Assembler, llm Completer) *RAG {
	return &RAG{assembler: assembler, llm: llm}
}

// Answer asks the model to answer question from context only. It makes
// exactly one completion call, also when context is empty.
func (r *RAG) Answer(ctx context.Context, question, contextText string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is required", models.ErrEmptyInput)
	}

	prompt := BuildPrompt(contextText, question)
	response, err := r.llm.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, models.ErrCompletion) {
			err = fmt.Errorf("%w: %w", models.ErrCompletion, err)
		}
		return "", err
	}
	return response, nil
}

// AnswerWithRetrieval assembles context for question, optionally restricted
// to source, and answers from it.
func (r *RAG) AnswerWithRetrieval(ctx context.Context, question, source string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is required", models.ErrEmptyInput)
	}
	contextText, err := r.assembler.Assemble(ctx, question, source)
	if err != nil {
		return "", err
	}
	return r.Answer(ctx, question, contextText)
}

// Ask answers a request. Retrieval uses the bare question; prior turns are
// only shown to the model.
func (r *RAG) Ask(ctx context.Context, req Request) (*models.PromptResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", models.ErrEmptyInput)
	}
	contextText, err := r.assembler.Assemble(ctx, req.Question, req.Source)
	if err != nil {
		return nil, err
	}

	question := req.Question
	if len(req.History) > 0 {
		question = withHistory(req.History, req.Question)
	}
	answer, err := r.Answer(ctx, question, contextText)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("context_chars", len(contextText)).Str("source", req.Source).Msg("Answered question")
	return &models.PromptResponse{Query: req.Question, Source: req.Source, Content: answer}, nil
}

// BuildPrompt fills the answer template.
func BuildPrompt(contextText, question string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, contextText, question)
}

func withHistory(history []models.ChatEntry, question string) string {
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, h := range history {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", h.Query, h.Response)
	}
	b.WriteString("\n")
	b.WriteString(question)
	return b.String()
}
