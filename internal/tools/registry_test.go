package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mruwnik/notes-critic-sub001/internal/domain"
	"github.com/mruwnik/notes-critic-sub001/internal/domain/models"
)

// memoryNoteRepo is an in-memory NoteRepository for tests
type memoryNoteRepo struct {
	notes map[string]*models.Note // path -> note
}

func newMemoryNoteRepo(notes ...*models.Note) *memoryNoteRepo {
	repo := &memoryNoteRepo{notes: make(map[string]*models.Note)}
	for _, note := range notes {
		repo.notes[note.Path] = note
	}
	return repo
}

func (r *memoryNoteRepo) GetNoteByPath(ctx context.Context, userID, path string) (*models.Note, error) {
	note, ok := r.notes[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *note
	return &cp, nil
}

func (r *memoryNoteRepo) ListNotes(ctx context.Context, userID string) ([]models.Note, error) {
	var out []models.Note
	for _, note := range r.notes {
		out = append(out, *note)
	}
	return out, nil
}

func (r *memoryNoteRepo) SearchNotes(ctx context.Context, userID, query string, limit int) ([]models.NoteMatch, error) {
	var out []models.NoteMatch
	for _, note := range r.notes {
		if strings.Contains(note.Content, query) {
			out = append(out, models.NoteMatch{Path: note.Path, Title: note.Title, Snippet: query})
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memoryNoteRepo) UpsertNote(ctx context.Context, note *models.Note) error {
	cp := *note
	r.notes[note.Path] = &cp
	return nil
}

func testNote(path, content string) *models.Note {
	return &models.Note{
		ID:        "note_" + path,
		UserID:    "user_1",
		Path:      path,
		Title:     titleFromPath(path),
		Content:   content,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestRegistryDispatch(t *testing.T) {
	repo := newMemoryNoteRepo(testNote("a.md", "alpha content"))
	registry := RegisterNoteTools("user_1", repo, nil)

	result, err := registry.Execute(context.Background(), "note_view", map[string]any{"path": "a.md"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(string(result), "alpha content") {
		t.Errorf("result = %s", result)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	repo := newMemoryNoteRepo()
	registry := RegisterNoteTools("user_1", repo, nil)

	want := []string{"note_edit", "note_search", "note_tree", "note_view"}
	for i := 0; i < 5; i++ {
		names := registry.Names()
		if len(names) != len(want) {
			t.Fatalf("names = %v", names)
		}
		for j, name := range want {
			if names[j] != name {
				t.Fatalf("names not in sorted order: %v", names)
			}
		}
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Execute(context.Background(), "nope", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Errorf("err = %v", err)
	}
}

func TestNoteViewMissingPath(t *testing.T) {
	tool := NewNoteViewTool("user_1", newMemoryNoteRepo(), nil)
	_, err := tool.Execute(context.Background(), map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "path") {
		t.Errorf("err = %v", err)
	}
}

func TestNoteViewTruncation(t *testing.T) {
	long := strings.Repeat("x", 100)
	repo := newMemoryNoteRepo(testNote("big.md", long))
	tool := NewNoteViewTool("user_1", repo, &Config{MaxContentSize: 10, SearchDefaultLimit: 5, SearchMaxLimit: 20})

	result, err := tool.Execute(context.Background(), map[string]any{"path": "big.md"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	out := result.(map[string]interface{})
	if out["truncated"] != true {
		t.Error("truncation not flagged")
	}
	if !strings.Contains(out["content"].(string), "truncated") {
		t.Errorf("content = %q", out["content"])
	}
}

func TestNoteEditReplace(t *testing.T) {
	repo := newMemoryNoteRepo(testNote("a.md", "the quick brown fox"))
	tool := NewNoteEditTool("user_1", repo)

	tests := []struct {
		name    string
		input   map[string]any
		wantErr string
	}{
		{
			name:  "single match replaces",
			input: map[string]any{"path": "a.md", "old_text": "quick", "new_text": "slow"},
		},
		{
			name:    "missing text",
			input:   map[string]any{"path": "a.md", "old_text": "zebra", "new_text": "x"},
			wantErr: "not found",
		},
		{
			name:    "neither mode given",
			input:   map[string]any{"path": "a.md"},
			wantErr: "old_text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("execute failed: %v", err)
				}
				note, _ := repo.GetNoteByPath(context.Background(), "user_1", "a.md")
				if !strings.Contains(note.Content, "slow") {
					t.Errorf("content = %q", note.Content)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNoteEditAmbiguousMatch(t *testing.T) {
	repo := newMemoryNoteRepo(testNote("a.md", "dup text dup text"))
	tool := NewNoteEditTool("user_1", repo)

	_, err := tool.Execute(context.Background(), map[string]any{
		"path": "a.md", "old_text": "dup", "new_text": "x",
	})
	if err == nil || !strings.Contains(err.Error(), "more specific") {
		t.Errorf("err = %v", err)
	}
}

func TestNoteEditOverwriteCreates(t *testing.T) {
	repo := newMemoryNoteRepo()
	tool := NewNoteEditTool("user_1", repo)

	result, err := tool.Execute(context.Background(), map[string]any{
		"path": "new/idea.md", "content": "fresh note",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.(map[string]interface{})["created"] != true {
		t.Error("creation not reported")
	}
	if errors.Is(func() error {
		_, err := repo.GetNoteByPath(context.Background(), "user_1", "new/idea.md")
		return err
	}(), domain.ErrNotFound) {
		t.Error("note was not created")
	}
}

func TestNoteSearchLimits(t *testing.T) {
	repo := newMemoryNoteRepo(
		testNote("a.md", "needle one"),
		testNote("b.md", "needle two"),
		testNote("c.md", "needle three"),
	)
	tool := NewNoteSearchTool("user_1", repo, &Config{MaxContentSize: 1000, SearchDefaultLimit: 5, SearchMaxLimit: 2})

	result, err := tool.Execute(context.Background(), map[string]any{
		"query": "needle", "limit": float64(50),
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if count := result.(map[string]interface{})["count"].(int); count > 2 {
		t.Errorf("limit not clamped: %d results", count)
	}
}

func TestDefinitionsSelection(t *testing.T) {
	defs := Definitions([]string{"note_view", "bogus", "note_edit"})
	if len(defs) != 2 {
		t.Fatalf("defs = %d, want 2", len(defs))
	}
	if defs[0].Name != "note_view" || defs[1].Name != "note_edit" {
		t.Errorf("definition order wrong: %v, %v", defs[0].Name, defs[1].Name)
	}
	for _, def := range defs {
		if def.InputSchema["type"] != "object" {
			t.Errorf("%s schema has no object type", def.Name)
		}
	}
}
