package core

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"agentbus/pkg/model"
)

// previewRunes bounds the content excerpt carried in msg.new payloads.
const previewRunes = 200

// PostMessageInput carries everything a message post may include.
type PostMessageInput struct {
	ThreadID   string
	AuthorID   string
	AuthorName string
	Role       string
	Content    string
	Mentions   []string
	Metadata   map[string]string
	Images     []model.ImageRef
}

// PostMessage appends a message to a thread and announces it. The
// author name falls back to the registered agent's name when the call
// is attributed; image attachments ride in metadata.
func (a *API) PostMessage(ctx context.Context, in PostMessageInput) (*model.Message, error) {
	authorName := in.AuthorName
	if authorName == "" && in.AuthorID != "" {
		if agent, err := a.store.FetchAgent(ctx, in.AuthorID); err == nil {
			authorName = agent.Name
		}
	}
	if authorName == "" {
		authorName = in.AuthorID
	}
	if authorName == "" {
		return nil, model.InvalidInput("author must not be empty")
	}

	metadata := in.Metadata
	if len(in.Images) > 0 {
		encoded, err := json.Marshal(in.Images)
		if err != nil {
			return nil, model.Internal(err, "encoding image refs")
		}
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["images"] = string(encoded)
	}

	msg, err := a.store.InsertMessage(ctx, &model.Message{
		ThreadID:   in.ThreadID,
		AuthorID:   in.AuthorID,
		AuthorName: authorName,
		Role:       model.Role(in.Role),
		Content:    in.Content,
		Mentions:   in.Mentions,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := a.store.TouchActivity(ctx, in.AuthorID, model.ActivityPost); err != nil {
		a.log.Warn("Recording post activity failed",
			zap.String("agent_id", in.AuthorID), zap.Error(err))
	}

	a.bus.Publish(model.NewEvent(model.EventMsgNew, map[string]any{
		"thread_id":   msg.ThreadID,
		"message_id":  msg.ID,
		"seq":         msg.Seq,
		"author_name": msg.AuthorName,
		"role":        string(msg.Role),
		"content":     truncateRunes(msg.Content, previewRunes),
	}))
	return msg, nil
}

// ListMessages reads a thread's log after a cursor.
func (a *API) ListMessages(ctx context.Context, threadID string, afterSeq int64, limit int, includeSystemPrompt bool) ([]*model.Message, error) {
	return a.store.ListMessages(ctx, threadID, afterSeq, limit, includeSystemPrompt)
}

// WaitMessages long-polls a thread for messages past afterSeq. A zero
// timeout takes the configured default; the configured cap always
// applies. When the call is attributed, the agent is marked waiting for
// presence purposes.
func (a *API) WaitMessages(ctx context.Context, threadID string, afterSeq int64, timeout time.Duration, agentID string) ([]*model.Message, error) {
	if timeout <= 0 {
		timeout = a.cfg.Wait.DefaultTimeout()
	}
	if max := a.cfg.Wait.MaxTimeout(); max > 0 && timeout > max {
		timeout = max
	}

	if agentID != "" {
		if err := a.store.TouchActivity(ctx, agentID, model.ActivityWait); err != nil {
			a.log.Warn("Recording wait activity failed",
				zap.String("agent_id", agentID), zap.Error(err))
		}
	}

	return a.wait.Wait(ctx, threadID, afterSeq, timeout)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
