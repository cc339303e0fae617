package usecase

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// ReplyStream forwards completion chunks to the caller while the turn is
// generated. Consumers must drain Chunks or cancel the context passed to
// StreamMessage, then call Wait.
type ReplyStream struct {
	chunks chan string
	done   chan struct{}
	result *domain.TurnResult
	err    error
}

var _ ports.ReplyStream = (*ReplyStream)(nil)

func newReplyStream(buffer int) *ReplyStream {
	return &ReplyStream{
		chunks: make(chan string, buffer),
		done:   make(chan struct{}),
	}
}

// completedStream wraps an already persisted result, used for handoff turns.
func completedStream(result *domain.TurnResult) *ReplyStream {
	s := newReplyStream(1)
	if result.Reply != "" {
		s.chunks <- result.Reply
	}
	close(s.chunks)
	s.finish(result, nil)
	return s
}

func (s *ReplyStream) Chunks() <-chan string {
	return s.chunks
}

func (s *ReplyStream) Wait() (*domain.TurnResult, error) {
	<-s.done
	return s.result, s.err
}

func (s *ReplyStream) finish(result *domain.TurnResult, err error) {
	s.result = result
	s.err = err
	close(s.done)
}

func (s *ConversationService) StreamMessage(ctx context.Context, conversationID, message string) (ports.ReplyStream, error) {
	turn, err := s.beginTurn(ctx, modeStream, conversationID, message)
	if err != nil {
		return nil, err
	}

	if turn.handoff.Requested {
		defer turn.release()
		result, err := s.commit(ctx, turn, turn.config.HandoffMessage, false)
		if err != nil {
			return nil, err
		}
		return completedStream(result), nil
	}

	if err := s.planTurn(ctx, turn); err != nil {
		turn.release()
		return nil, err
	}

	started := s.opts.Now()
	tokens, err := s.completion.Stream(ctx, turn.completionRequest())
	if err != nil {
		turn.plan.debug.Timings.Completion = s.opts.Now().Sub(started)
		s.fail(turn, outcomeProviderFailure, err)
		turn.release()
		return nil, domain.WrapError(domain.ErrProviderFailure, "stream reply", err)
	}

	out := newReplyStream(s.opts.StreamBuffer)
	go s.pump(ctx, turn, tokens, out)
	return out, nil
}

// pump forwards chunks and buffers the full text. On cancellation it stops
// forwarding and persists what was generated so far; a provider error aborts
// the turn without persisting.
func (s *ConversationService) pump(ctx context.Context, turn *activeTurn, tokens ports.TokenStream, out *ReplyStream) {
	defer turn.release()

	started := s.opts.Now()
	var (
		buf       strings.Builder
		cancelled bool
		streamErr error
	)

forward:
	for {
		chunk, err := tokens.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
			} else {
				streamErr = err
			}
			break
		}
		if chunk == "" {
			continue
		}
		buf.WriteString(chunk)

		select {
		case out.chunks <- chunk:
		case <-ctx.Done():
			cancelled = true
			break forward
		}
	}
	close(out.chunks)
	if err := tokens.Close(); err != nil {
		s.logger.Debug().Err(err).Str("conversation_id", turn.state.ID).Msg("token_stream_close_failed")
	}
	turn.plan.debug.Timings.Completion = s.opts.Now().Sub(started)

	if streamErr != nil {
		s.fail(turn, outcomeProviderFailure, streamErr)
		out.finish(nil, domain.WrapError(domain.ErrProviderFailure, "stream reply", streamErr))
		return
	}
	if cancelled {
		s.logger.Warn().
			Str("conversation_id", turn.state.ID).
			Int("partial_bytes", buf.Len()).
			Msg("stream_cancelled")
	}

	result, err := s.commit(ctx, turn, buf.String(), cancelled)
	out.finish(result, err)
}
