package sse

import (
	"fmt"
	"net/http"
)

// CommentWriter writes SSE comment lines (": keepalive") to keep the
// connection open through proxies that time out idle streams. Callers
// write keepalives from the same goroutine as the event frames;
// ResponseWriter is not safe for concurrent writes.
type CommentWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewCommentWriter creates a keep-alive writer over an SSE response
func NewCommentWriter(w http.ResponseWriter, flusher http.Flusher) *CommentWriter {
	return &CommentWriter{w: w, flusher: flusher}
}

// WriteKeepAlive writes an SSE comment and flushes. Lines starting
// with ":" are ignored by clients per the SSE spec.
func (c *CommentWriter) WriteKeepAlive() error {
	if _, err := fmt.Fprintf(c.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	c.flusher.Flush()

	// Zero-byte write detects connections the flush did not surface
	if _, err := c.w.Write([]byte{}); err != nil {
		return fmt.Errorf("connection closed: %w", err)
	}
	return nil
}
