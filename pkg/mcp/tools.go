package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"agentbus/pkg/core"
	"agentbus/pkg/model"
)

// registerTools wires all sixteen bus tools. Names use underscores
// because some MCP clients reject dots.
func (s *Server) registerTools() {
	s.registerThreadTools()
	s.registerMessageTools()
	s.registerAgentTools()

	s.mcp.AddTool(mcp.NewTool("bus_get_config",
		mcp.WithDescription("Get the bus address, version, timeouts and language hint."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.api.GetBusInfo())
	})
}

func (s *Server) registerThreadTools() {
	s.mcp.AddTool(mcp.NewTool("thread_create",
		mcp.WithDescription("Create a new conversation thread."),
		mcp.WithString("topic", mcp.Required(), mcp.Description("Topic of the thread.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := s.api.CreateThread(ctx, topic, nil)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(t)
	})

	s.mcp.AddTool(mcp.NewTool("thread_list",
		mcp.WithDescription("List threads, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Filter: discuss, implement, review, done or closed.")),
		mcp.WithBoolean("include_archived", mcp.Description("Include archived threads.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threads, err := s.api.ListThreads(ctx,
			req.GetString("status", ""),
			req.GetBool("include_archived", false))
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"threads": threads})
	})

	s.mcp.AddTool(mcp.NewTool("thread_get",
		mcp.WithDescription("Fetch a single thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := s.api.GetThread(ctx, id)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(t)
	})

	s.mcp.AddTool(mcp.NewTool("thread_set_state",
		mcp.WithDescription("Advance a thread to a new state."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
		mcp.WithString("state", mcp.Required(), mcp.Description("discuss, implement, review, done or closed.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		state, err := req.RequireString("state")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := s.api.SetThreadState(ctx, id, state)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(t)
	})

	s.mcp.AddTool(mcp.NewTool("thread_close",
		mcp.WithDescription("Close a thread, optionally recording a summary."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
		mcp.WithString("summary", mcp.Description("Closing summary.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		t, err := s.api.CloseThread(ctx, id, req.GetString("summary", ""))
		if err != nil {
			return errResult(err)
		}
		return jsonResult(t)
	})

	s.mcp.AddTool(mcp.NewTool("thread_archive",
		mcp.WithDescription("Archive a thread, hiding it from default listings."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.api.ArchiveThread(ctx, id); err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]bool{"ok": true})
	})
}

func (s *Server) registerMessageTools() {
	s.mcp.AddTool(mcp.NewTool("msg_post",
		mcp.WithDescription("Post a message to a thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message body.")),
		mcp.WithString("author", mcp.Description("Display name; defaults to the registered agent name.")),
		mcp.WithString("agent_id", mcp.Description("Registered agent id attributing the post.")),
		mcp.WithString("role", mcp.Description("user, assistant or system. Default assistant.")),
		mcp.WithArray("mentions", mcp.Description("Agent ids referenced by the message.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threadID, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		role := req.GetString("role", string(model.RoleAssistant))

		msg, err := s.api.PostMessage(ctx, core.PostMessageInput{
			ThreadID:   threadID,
			AuthorID:   req.GetString("agent_id", ""),
			AuthorName: req.GetString("author", ""),
			Role:       role,
			Content:    content,
			Mentions:   req.GetStringSlice("mentions", nil),
		})
		if err != nil {
			return errResult(err)
		}
		return jsonResult(msg)
	})

	s.mcp.AddTool(mcp.NewTool("msg_list",
		mcp.WithDescription("List messages in a thread after a sequence cursor."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
		mcp.WithNumber("after_seq", mcp.Description("Return messages with seq greater than this. Default 0.")),
		mcp.WithNumber("limit", mcp.Description("Maximum messages to return. Default 100.")),
		mcp.WithBoolean("include_system_prompt", mcp.Description("Include system-role rows.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threadID, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		msgs, err := s.api.ListMessages(ctx, threadID,
			int64(req.GetFloat("after_seq", 0)),
			int(req.GetFloat("limit", 0)),
			req.GetBool("include_system_prompt", false))
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"messages": msgs})
	})

	s.mcp.AddTool(mcp.NewTool("msg_wait",
		mcp.WithDescription("Long-poll a thread for messages past a cursor. Returns an empty list on timeout."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread id.")),
		mcp.WithNumber("after_seq", mcp.Description("Wait for messages with seq greater than this.")),
		mcp.WithNumber("timeout_seconds", mcp.Description("How long to wait. Defaults to the configured timeout.")),
		mcp.WithString("agent_id", mcp.Description("Registered agent id, for presence accounting.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threadID, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		timeout := time.Duration(req.GetFloat("timeout_seconds", 0) * float64(time.Second))
		msgs, err := s.api.WaitMessages(ctx, threadID,
			int64(req.GetFloat("after_seq", 0)),
			timeout,
			req.GetString("agent_id", ""))
		if err != nil {
			return errResult(err)
		}
		if msgs == nil {
			msgs = []*model.Message{}
		}
		return jsonResult(map[string]any{"messages": msgs})
	})
}

func (s *Server) registerAgentTools() {
	s.mcp.AddTool(mcp.NewTool("agent_register",
		mcp.WithDescription("Register this agent on the bus. Keep the returned token."),
		mcp.WithString("name", mcp.Description("Display name. Derived from ide and model when empty.")),
		mcp.WithString("ide", mcp.Description("Host IDE or CLI name.")),
		mcp.WithString("model", mcp.Description("LLM label.")),
		mcp.WithString("capabilities", mcp.Description("Free-form capability description.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		a, err := s.api.RegisterAgent(ctx,
			req.GetString("name", ""),
			req.GetString("ide", ""),
			req.GetString("model", ""),
			req.GetString("capabilities", ""))
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{
			"agent_id": a.ID,
			"name":     a.Name,
			"token":    a.Token,
		})
	})

	s.mcp.AddTool(mcp.NewTool("agent_heartbeat",
		mcp.WithDescription("Refresh this agent's liveness."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent id.")),
		mcp.WithString("token", mcp.Required(), mcp.Description("Registration token.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		token, err := req.RequireString("token")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.api.HeartbeatAgent(ctx, id, token); err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]bool{"ok": true})
	})

	s.mcp.AddTool(mcp.NewTool("agent_unregister",
		mcp.WithDescription("Remove this agent from the bus."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent id.")),
		mcp.WithString("token", mcp.Required(), mcp.Description("Registration token.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		token, err := req.RequireString("token")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.api.UnregisterAgent(ctx, id, token); err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]bool{"ok": true})
	})

	s.mcp.AddTool(mcp.NewTool("agent_list",
		mcp.WithDescription("List all registered agents with derived online state."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agents, err := s.api.ListAgents(ctx)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]any{"agents": agents})
	})

	s.mcp.AddTool(mcp.NewTool("agent_set_typing",
		mcp.WithDescription("Broadcast a typing signal on a thread."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent id.")),
		mcp.WithString("thread_id", mcp.Description("Thread the agent is typing in.")),
		mcp.WithBoolean("typing", mcp.Description("True while composing. Default true.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := s.api.SetTyping(ctx, id,
			req.GetString("thread_id", ""),
			req.GetBool("typing", true)); err != nil {
			return errResult(err)
		}
		return jsonResult(map[string]bool{"ok": true})
	})

	s.mcp.AddTool(mcp.NewTool("agent_invite",
		mcp.WithDescription("Spawn a catalog-configured CLI agent onto a thread."),
		mcp.WithString("agent_name", mcp.Required(), mcp.Description("Catalog entry name.")),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread the agent should join.")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("agent_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		threadID, err := req.RequireString("thread_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := s.api.InviteAgent(ctx, name, threadID)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(result)
	})
}
