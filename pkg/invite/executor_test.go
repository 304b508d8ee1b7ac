package invite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentbus/pkg/model"
)

func newTestExecutor(t *testing.T, catalogJSON string) *Executor {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "available_agents.json")
	if err := os.WriteFile(path, []byte(catalogJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewCatalog(path, testLogger(t))
	if err := c.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return NewExecutor(c, testLogger(t), filepath.Join(dir, "invocations"), "http://127.0.0.1:39765")
}

func TestInterpolateQuotesValues(t *testing.T) {
	e := newTestExecutor(t, `{}`)

	cmd, err := e.interpolate("agent --thread {thread_id} --bus {bus_address}", "t-123")
	if err != nil {
		t.Fatalf("interpolate: %v", err)
	}
	if !strings.Contains(cmd, "--thread 't-123'") {
		t.Errorf("thread id not quoted: %s", cmd)
	}
	if !strings.Contains(cmd, "--bus 'http://127.0.0.1:39765'") {
		t.Errorf("bus address not quoted: %s", cmd)
	}
}

func TestInterpolateEscapesSingleQuotes(t *testing.T) {
	e := newTestExecutor(t, `{}`)

	cmd, err := e.interpolate("agent {thread_id}", "it's; rm -rf /")
	if err != nil {
		t.Fatalf("interpolate: %v", err)
	}
	if !strings.Contains(cmd, `'it'\''s; rm -rf /'`) {
		t.Errorf("embedded quote not escaped: %s", cmd)
	}
}

func TestInterpolateSessionIDIsFresh(t *testing.T) {
	e := newTestExecutor(t, `{}`)

	a, _ := e.interpolate("run {session_id}", "t")
	b, _ := e.interpolate("run {session_id}", "t")
	if a == b {
		t.Error("session_id should differ per invocation")
	}
}

func TestInterpolateRejectsUnknownPlaceholder(t *testing.T) {
	e := newTestExecutor(t, `{}`)

	_, err := e.interpolate("agent --secret {api_key}", "t-1")
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestInviteUnknownAgent(t *testing.T) {
	e := newTestExecutor(t, `{}`)

	_, err := e.Invite(context.Background(), "ghost", "t-1")
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestInviteDisabledAgent(t *testing.T) {
	e := newTestExecutor(t, `{"off": {"invoke_command": "true", "enabled": false}}`)

	_, err := e.Invite(context.Background(), "off", "t-1")
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("expected invalid_input for disabled agent, got %v", err)
	}
}

func TestInviteSpawnsAndLogs(t *testing.T) {
	e := newTestExecutor(t, `{"echoer": {"invoke_command": "echo invited to {thread_id}"}}`)

	res, err := e.Invite(context.Background(), "echoer", "t-42")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if !res.OK || res.AgentName != "echoer" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.CommandExecuted, "'t-42'") {
		t.Errorf("command not interpolated: %s", res.CommandExecuted)
	}

	// The subprocess writes its output to the invocation log.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		entries, _ := os.ReadDir(e.logDir)
		for _, entry := range entries {
			data, _ := os.ReadFile(filepath.Join(e.logDir, entry.Name()))
			if strings.Contains(string(data), "invited to t-42") {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("invocation log never captured subprocess output")
}

func TestInviteUnknownPlaceholderIsInvalidInput(t *testing.T) {
	e := newTestExecutor(t, `{"lost": {"invoke_command": "true {unknown_thing}"}}`)

	// Unknown placeholder is a configuration error, reported as such.
	if _, err := e.Invite(context.Background(), "lost", "t-1"); model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("expected invalid_input, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := sanitizeFilename("re/viewer one!")
	if strings.ContainsAny(got, "/ !") {
		t.Errorf("sanitize left unsafe characters: %q", got)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"a'b", `'a'\''b'`},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
