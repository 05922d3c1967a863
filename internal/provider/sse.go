package provider

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mruwnik/notes-critic-sub001/internal/domain/models/llm"
	services "github.com/mruwnik/notes-critic-sub001/internal/domain/services/llm"
)

// SSEOpener issues a built endpoint request and decodes the response
// body as a server-sent event stream. Each "data:" line becomes one
// RawEvent tagged with the preceding "event:" name, if any.
type SSEOpener struct {
	client *http.Client
}

// NewSSEOpener creates an opener with a streaming-friendly client
// (no overall request timeout; streams are bounded by the engine's
// idle watchdog and cancellation instead)
func NewSSEOpener() *SSEOpener {
	return &SSEOpener{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 60 * time.Second,
			},
		},
	}
}

// OpenStream sends the request and yields wire events until the body
// ends or the context is cancelled. A non-2xx response is returned as
// an error with the response body included.
func (o *SSEOpener) OpenStream(ctx context.Context, req *services.EndpointRequest) (<-chan llm.RawEvent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	events := make(chan llm.RawEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		// Tool-call argument deltas can make individual lines large
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		eventName := ""
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event: ") {
				eventName = strings.TrimPrefix(line, "event: ")
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				if line == "" {
					eventName = ""
				}
				continue
			}
			data := strings.TrimPrefix(line, "data: ")

			select {
			case events <- llm.RawEvent{Name: eventName, Data: []byte(data)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
