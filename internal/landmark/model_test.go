package landmark

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureModelDownloads(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	payload := []byte("model-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "models", "face_landmarker.task")
	if err := EnsureModel(context.Background(), path, []string{srv.URL}); err != nil {
		t.Fatalf("EnsureModel() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("model file missing: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("model content = %q, want %q", got, payload)
	}
}

func TestEnsureModelFallsBackToMirror(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mirror"))
	}))
	defer good.Close()

	path := filepath.Join(t.TempDir(), "face_landmarker.task")
	if err := EnsureModel(context.Background(), path, []string{bad.URL, good.URL}); err != nil {
		t.Fatalf("EnsureModel() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("model file missing after mirror fallback: %v", err)
	}
}

func TestEnsureModelAllMirrorsFail(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	path := filepath.Join(t.TempDir(), "face_landmarker.task")
	err := EnsureModel(context.Background(), path, []string{bad.URL})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("EnsureModel() error = %v, want ErrModelUnavailable", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("partial model file left behind after total failure")
	}
}

func TestEnsureModelSkipsExistingFile(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	path := filepath.Join(t.TempDir(), "face_landmarker.task")
	if err := os.WriteFile(path, []byte("cached"), 0o644); err != nil {
		t.Fatal(err)
	}

	// No mirrors needed when the file is already there.
	if err := EnsureModel(context.Background(), path, nil); err != nil {
		t.Fatalf("EnsureModel() error = %v", err)
	}
}
