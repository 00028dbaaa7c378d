package service

import (
	"context"

	"github.com/clnpth/newsroom/internal/service/engine"
	"github.com/clnpth/newsroom/internal/service/llm"
	"github.com/clnpth/newsroom/internal/service/translate"
)

// Narrow provider contracts. The concrete clients in the subpackages
// satisfy these; tests substitute fakes.

// WorkflowTrigger submits article generation to the external engine.
type WorkflowTrigger interface {
	TriggerGeneration(ctx context.Context, req engine.GenerationRequest) error
}

// Translator performs stage-1 structural translation.
type Translator interface {
	TranslateDocument(ctx context.Context, doc translate.Document, targetLang string) (translate.Document, error)
}

// Reviewer performs stage-2 idiomatic review of a machine translation.
type Reviewer interface {
	ReviewTranslation(ctx context.Context, original, translated, targetLang string) (*llm.TranslationReview, error)
}

// Scorer runs the automated supervisor evaluation.
type Scorer interface {
	EvaluateArticle(ctx context.Context, input llm.EvaluationInput) (*llm.Evaluation, error)
}

// Embedder produces semantic embeddings for crosslinking.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SnippetGenerator produces per-platform social teasers.
type SnippetGenerator interface {
	GenerateSnippets(ctx context.Context, title, lead, body string) ([]llm.Snippet, error)
}
