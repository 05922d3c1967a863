package models

import (
	"time"
)

// Note is one document the user can converse about and the model can
// read or edit through tools. Path is the note's full slash-separated
// location and is unique per user.
type Note struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Path      string    `json:"path" db:"path"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NoteMatch is one full-text search hit with a highlighted snippet
type NoteMatch struct {
	Path    string  `json:"path"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Rank    float32 `json:"rank"`
}
