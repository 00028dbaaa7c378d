package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clnpth/newsroom/internal/config"
	"github.com/clnpth/newsroom/internal/service/engine"
	"github.com/clnpth/newsroom/internal/service/llm"
	"github.com/clnpth/newsroom/internal/service/translate"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Queue: config.QueueConfig{
			SweepInterval: "60s",
			RetryWindow:   "10m",
			MaxRetries:    3,
		},
		Translation: config.TranslationConfig{SourceLanguage: "de"},
	}
}

// fakeTrigger records generation requests.
type fakeTrigger struct {
	mu    sync.Mutex
	calls []engine.GenerationRequest
	err   error
}

func (f *fakeTrigger) TriggerGeneration(ctx context.Context, req engine.GenerationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.err
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeTranslator fails for languages listed in failLangs.
type fakeTranslator struct {
	failLangs map[string]bool
	calls     atomic.Int32
}

func (f *fakeTranslator) TranslateDocument(ctx context.Context, doc translate.Document, lang string) (translate.Document, error) {
	f.calls.Add(1)
	if f.failLangs[lang] {
		return translate.Document{}, fmt.Errorf("provider unreachable for %s", lang)
	}
	return translate.Document{
		Title: "[" + lang + "] " + doc.Title,
		Lead:  "[" + lang + "] " + doc.Lead,
		Body:  "[" + lang + "] " + doc.Body,
	}, nil
}

type fakeReviewer struct {
	err      error
	improved string
}

func (f *fakeReviewer) ReviewTranslation(ctx context.Context, original, translated, lang string) (*llm.TranslationReview, error) {
	if f.err != nil {
		return nil, f.err
	}
	improved := f.improved
	if improved == "" {
		improved = translated + " (reviewed)"
	}
	return &llm.TranslationReview{Improved: improved, QualityScore: 90}, nil
}

type fakeScorer struct {
	eval *llm.Evaluation
	err  error
}

func (f *fakeScorer) EvaluateArticle(ctx context.Context, input llm.EvaluationInput) (*llm.Evaluation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.eval != nil {
		return f.eval, nil
	}
	return &llm.Evaluation{
		Score:          82,
		Recommendation: "approve",
		Justification:  "solid draft",
		StyleTags:      []string{"factual", "informative"},
	}, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vector != nil {
		return f.vector, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type testEnv struct {
	db           *gorm.DB
	lifecycle    *Lifecycle
	translations *Translations
	supervisor   *Supervisor
	learning     *Learning
	broadcaster  *Broadcaster
	tasks        *TaskRunner
	trigger      *fakeTrigger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	logger := zap.NewNop()
	cfg := testConfig()

	broadcaster := NewBroadcaster(logger)
	tasks := NewTaskRunner(logger)
	t.Cleanup(tasks.Shutdown)

	trigger := &fakeTrigger{}
	learning := NewLearning(db, logger)
	supervisor := NewSupervisor(db, &fakeScorer{}, learning, broadcaster, logger)
	translations := NewTranslations(db, &fakeTranslator{}, &fakeReviewer{}, broadcaster, "de", logger)
	images := NewImages(db, nil, t.TempDir(), broadcaster, logger)
	lifecycle := NewLifecycle(db, cfg, broadcaster, tasks, trigger, &fakeEmbedder{},
		translations, images, supervisor, learning, logger)

	return &testEnv{
		db:           db,
		lifecycle:    lifecycle,
		translations: translations,
		supervisor:   supervisor,
		learning:     learning,
		broadcaster:  broadcaster,
		tasks:        tasks,
		trigger:      trigger,
	}
}
