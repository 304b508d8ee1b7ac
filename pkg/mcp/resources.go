package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"agentbus/pkg/model"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(
		"chat://bus/config",
		"Bus configuration",
		mcp.WithResourceDescription("Bus address, version and timeout settings"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(req.Params.URI, s.api.GetBusInfo())
	})

	s.mcp.AddResource(mcp.NewResource(
		"chat://agents/active",
		"Active agents",
		mcp.WithResourceDescription("Agents currently online, with their derived state"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		agents, err := s.api.ListAgents(ctx)
		if err != nil {
			return nil, err
		}
		online := agents[:0]
		for _, a := range agents {
			if a.IsOnline {
				online = append(online, a)
			}
		}
		return jsonContents(req.Params.URI, map[string]any{"agents": online})
	})

	s.mcp.AddResource(mcp.NewResource(
		"chat://threads/active",
		"Active threads",
		mcp.WithResourceDescription("All threads that are not archived"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		threads, err := s.api.ListThreads(ctx, "", false)
		if err != nil {
			return nil, err
		}
		return jsonContents(req.Params.URI, map[string]any{"threads": threads})
	})

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(
		"chat://threads/{id}/transcript",
		"Thread transcript",
		mcp.WithTemplateDescription("The full ordered message log of a thread, rendered as text"),
		mcp.WithTemplateMIMEType("text/plain"),
	), s.readTranscript)

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(
		"chat://threads/{id}/summary",
		"Thread summary",
		mcp.WithTemplateDescription("The summary recorded when the thread was closed"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readSummary)

	s.mcp.AddResourceTemplate(mcp.NewResourceTemplate(
		"chat://threads/{id}/state",
		"Thread state",
		mcp.WithTemplateDescription("The thread's current lifecycle state"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readState)
}

func (s *Server) readTranscript(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, err := threadIDFromURI(req.Params.URI, "/transcript")
	if err != nil {
		return nil, err
	}
	t, err := s.api.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.api.ListMessages(ctx, id, 0, 0, true)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thread: %s (%s)\n\n", t.Topic, t.Status)
	for _, m := range msgs {
		fmt.Fprintf(&b, "[%d] %s (%s): %s\n", m.Seq, m.AuthorName, m.Role, m.Content)
	}

	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      req.Params.URI,
		MIMEType: "text/plain",
		Text:     b.String(),
	}}, nil
}

func (s *Server) readSummary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, err := threadIDFromURI(req.Params.URI, "/summary")
	if err != nil {
		return nil, err
	}
	t, err := s.api.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, map[string]any{
		"thread_id": t.ID,
		"topic":     t.Topic,
		"summary":   t.Summary,
	})
}

func (s *Server) readState(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	id, err := threadIDFromURI(req.Params.URI, "/state")
	if err != nil {
		return nil, err
	}
	t, err := s.api.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, map[string]any{
		"thread_id":   t.ID,
		"state":       t.Status,
		"prev_status": t.PrevStatus,
	})
}

// threadIDFromURI pulls the {id} segment out of a
// chat://threads/{id}<suffix> resource URI.
func threadIDFromURI(uri, suffix string) (string, error) {
	const prefix = "chat://threads/"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return "", model.InvalidInput("unrecognized resource URI %q", uri)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if id == "" || strings.Contains(id, "/") {
		return "", model.InvalidInput("unrecognized resource URI %q", uri)
	}
	return id, nil
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(data),
	}}, nil
}
