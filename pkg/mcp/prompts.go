package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("summarize_thread",
		mcp.WithPromptDescription("Produce a concise summary of a thread's conversation"),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("The thread's topic"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("transcript",
			mcp.ArgumentDescription("The thread transcript to summarize"),
			mcp.RequiredArgument(),
		),
	), s.promptSummarizeThread)

	s.mcp.AddPrompt(mcp.NewPrompt("handoff_to_agent",
		mcp.WithPromptDescription("Hand a task from one agent to another with context"),
		mcp.WithArgument("from_agent",
			mcp.ArgumentDescription("Name of the agent handing off"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("to_agent",
			mcp.ArgumentDescription("Name of the agent taking over"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("task_description",
			mcp.ArgumentDescription("What the receiving agent should do"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("context",
			mcp.ArgumentDescription("Optional background the receiving agent needs"),
		),
	), s.promptHandoff)
}

func (s *Server) promptSummarizeThread(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := req.Params.Arguments["topic"]
	transcript := req.Params.Arguments["transcript"]

	text := fmt.Sprintf(`Summarize the following conversation about %q.
Cover the decisions made, any open questions, and who is responsible
for what. Keep it under 200 words.

%s`, topic, transcript)

	return mcp.NewGetPromptResult(
		"Summarize a thread",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}

func (s *Server) promptHandoff(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	from := req.Params.Arguments["from_agent"]
	to := req.Params.Arguments["to_agent"]
	task := req.Params.Arguments["task_description"]

	text := fmt.Sprintf(`You are %s. %s is handing the following task over to you:

%s`, to, from, task)

	if extra := req.Params.Arguments["context"]; extra != "" {
		text += fmt.Sprintf("\n\nBackground:\n%s", extra)
	}

	text += "\n\nAcknowledge the handoff in the thread, then begin working on the task."

	return mcp.NewGetPromptResult(
		"Hand a task to another agent",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}
