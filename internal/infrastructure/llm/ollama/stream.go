package ollama

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// chatStream reads the newline delimited JSON objects of a streaming
// /api/chat response.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newChatStream(body io.ReadCloser) *chatStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &chatStream{body: body, scanner: scanner}
}

func (s *chatStream) Recv() (string, error) {
	for !s.done {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", fmt.Errorf("read ollama stream: %w", err)
			}
			return "", fmt.Errorf("read ollama stream: %w", io.ErrUnexpectedEOF)
		}
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		var frame chatResponse
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return "", fmt.Errorf("decode ollama stream frame: %w", err)
		}
		if frame.Error != "" {
			return "", fmt.Errorf("ollama chat stream: %s", frame.Error)
		}
		s.done = frame.Done
		if frame.Message.Content != "" {
			return frame.Message.Content, nil
		}
	}
	return "", io.EOF
}

func (s *chatStream) Close() error {
	return s.body.Close()
}
