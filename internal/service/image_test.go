package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/clnpth/newsroom/internal/models"
	"github.com/clnpth/newsroom/internal/service/imagegen"
)

// fakeBackend is a scripted imagegen.Backend.
type fakeBackend struct {
	name        string
	available   bool
	submitErr   error
	pollState   imagegen.State
	pollErr     error
	data        []byte
	submitCalls int
}

func (f *fakeBackend) Name() string                            { return f.name }
func (f *fakeBackend) Available(ctx context.Context) bool      { return f.available }
func (f *fakeBackend) PollInterval() time.Duration             { return time.Millisecond }
func (f *fakeBackend) PollTimeout() time.Duration              { return time.Second }
func (f *fakeBackend) Poll(ctx context.Context, job imagegen.Job) (imagegen.State, error) {
	return f.pollState, f.pollErr
}

func (f *fakeBackend) Submit(ctx context.Context, prompt, kind string) (imagegen.Job, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return imagegen.Job{}, f.submitErr
	}
	return imagegen.Job{ID: f.name + "-job"}, nil
}

func (f *fakeBackend) Fetch(ctx context.Context, job imagegen.Job) ([]byte, error) {
	if f.data == nil {
		return nil, fmt.Errorf("no data")
	}
	return f.data, nil
}

func newImageArticle(t *testing.T, env *testEnv) uint {
	t.Helper()
	article, err := env.lifecycle.Create(context.Background(), CreateRequest{Text: "draft"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	seedContent(t, env, article.ID)
	return article.ID
}

func TestImageFallbackToSecondBackend(t *testing.T) {
	env := newTestEnv(t)
	id := newImageArticle(t, env)

	local := &fakeBackend{name: "local", available: true, submitErr: fmt.Errorf("boom")}
	cloud := &fakeBackend{name: "cloud", available: true,
		pollState: imagegen.StateCompleted, data: []byte("png-bytes")}

	dir := t.TempDir()
	images := NewImages(env.db, []imagegen.Backend{local, cloud}, dir, env.broadcaster, zap.NewNop())

	if err := images.Generate(context.Background(), id, "a hospital robot", imagegen.KindPhoto); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if local.submitCalls != 1 || cloud.submitCalls != 1 {
		t.Errorf("submit calls local=%d cloud=%d, want 1 each", local.submitCalls, cloud.submitCalls)
	}

	var content models.Content
	if err := env.db.Where("article_id = ?", id).First(&content).Error; err != nil {
		t.Fatalf("load content: %v", err)
	}
	if !strings.HasPrefix(content.ImageURL, "/static/images/article_") {
		t.Errorf("image url = %q", content.ImageURL)
	}

	stored, err := os.ReadFile(filepath.Join(dir, filepath.Base(content.ImageURL)))
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if string(stored) != "png-bytes" {
		t.Error("stored image bytes differ")
	}
}

func TestImageSkipsUnavailableBackend(t *testing.T) {
	env := newTestEnv(t)
	id := newImageArticle(t, env)

	offline := &fakeBackend{name: "local", available: false}
	cloud := &fakeBackend{name: "cloud", available: true,
		pollState: imagegen.StateCompleted, data: []byte("img")}

	images := NewImages(env.db, []imagegen.Backend{offline, cloud}, t.TempDir(), env.broadcaster, zap.NewNop())
	if err := images.Generate(context.Background(), id, "prompt", ""); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if offline.submitCalls != 0 {
		t.Error("offline backend must not be submitted to")
	}
}

func TestImageExhaustionDoesNotTouchArticleStatus(t *testing.T) {
	env := newTestEnv(t)
	id := newImageArticle(t, env)

	sub := env.broadcaster.Subscribe()
	defer env.broadcaster.Unsubscribe(sub)

	failing := &fakeBackend{name: "local", available: true, pollState: imagegen.StateFailed,
		pollErr: fmt.Errorf("cuda out of memory")}
	images := NewImages(env.db, []imagegen.Backend{failing}, t.TempDir(), env.broadcaster, zap.NewNop())

	err := images.Generate(context.Background(), id, "prompt", imagegen.KindInfographic)
	if !errors.Is(err, ErrExternalFailure) {
		t.Fatalf("want ErrExternalFailure, got %v", err)
	}

	article, _ := env.lifecycle.Get(id)
	if article.Status != models.StatusGenerating {
		t.Errorf("image failure changed article status to %q", article.Status)
	}

	var sawFailed bool
	for done := false; !done; {
		select {
		case event := <-sub.C:
			if event.Name == "image:failed" {
				sawFailed = true
				done = true
			}
		default:
			done = true
		}
	}
	if !sawFailed {
		t.Error("image:failed event not broadcast")
	}
}

func TestImageNoBackendAvailable(t *testing.T) {
	env := newTestEnv(t)
	id := newImageArticle(t, env)

	images := NewImages(env.db, []imagegen.Backend{
		&fakeBackend{name: "local"},
		&fakeBackend{name: "cloud"},
	}, t.TempDir(), env.broadcaster, zap.NewNop())

	err := images.Generate(context.Background(), id, "prompt", "")
	if !errors.Is(err, ErrExternalUnavailable) {
		t.Fatalf("want ErrExternalUnavailable, got %v", err)
	}
}
