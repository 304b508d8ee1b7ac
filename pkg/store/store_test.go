package store

import (
	"context"
	"path/filepath"
	"testing"

	"agentbus/pkg/logger"
	"agentbus/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	st, err := OpenAt(context.Background(), filepath.Join(t.TempDir(), "bus.db"), log)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestThreadLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	th, err := st.InsertThread(ctx, "fix the login bug", map[string]string{"repo": "acme/site"})
	if err != nil {
		t.Fatalf("InsertThread: %v", err)
	}
	if th.Status != model.StatusDiscuss {
		t.Errorf("new thread status = %q, want discuss", th.Status)
	}

	got, err := st.FetchThread(ctx, th.ID)
	if err != nil {
		t.Fatalf("FetchThread: %v", err)
	}
	if got.Topic != "fix the login bug" || got.Metadata["repo"] != "acme/site" {
		t.Errorf("fetched thread mismatch: %+v", got)
	}

	if err := st.UpdateThreadStatus(ctx, th.ID, model.StatusImplement); err != nil {
		t.Fatalf("UpdateThreadStatus: %v", err)
	}

	if err := st.CloseThread(ctx, th.ID, "shipped in v1.2"); err != nil {
		t.Fatalf("CloseThread: %v", err)
	}
	got, _ = st.FetchThread(ctx, th.ID)
	if got.Status != model.StatusClosed || got.Summary != "shipped in v1.2" {
		t.Errorf("closed thread = %+v", got)
	}

	// Closed threads reject further direct status changes.
	err = st.UpdateThreadStatus(ctx, th.ID, model.StatusReview)
	if model.KindOf(err) != model.KindConflict {
		t.Errorf("expected conflict on closed thread, got %v", err)
	}
}

func TestThreadValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.InsertThread(ctx, "   ", nil); model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("expected invalid_input for blank topic, got %v", err)
	}
	if _, err := st.FetchThread(ctx, "missing"); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
	th, _ := st.InsertThread(ctx, "x", nil)
	if err := st.UpdateThreadStatus(ctx, th.ID, model.StatusArchived); model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("archived must not be settable directly, got %v", err)
	}
}

func TestArchiveRestoresPriorStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	th, _ := st.InsertThread(ctx, "refactor storage", nil)
	if err := st.UpdateThreadStatus(ctx, th.ID, model.StatusReview); err != nil {
		t.Fatal(err)
	}
	if err := st.ArchiveThread(ctx, th.ID); err != nil {
		t.Fatalf("ArchiveThread: %v", err)
	}

	got, _ := st.FetchThread(ctx, th.ID)
	if got.Status != model.StatusArchived || got.PrevStatus != model.StatusReview {
		t.Errorf("archived thread = status %q prev %q", got.Status, got.PrevStatus)
	}

	if err := st.ArchiveThread(ctx, th.ID); model.KindOf(err) != model.KindConflict {
		t.Errorf("double archive should conflict, got %v", err)
	}

	if err := st.UnarchiveThread(ctx, th.ID); err != nil {
		t.Fatalf("UnarchiveThread: %v", err)
	}
	got, _ = st.FetchThread(ctx, th.ID)
	if got.Status != model.StatusReview || got.PrevStatus != "" {
		t.Errorf("unarchived thread = status %q prev %q", got.Status, got.PrevStatus)
	}

	if err := st.UnarchiveThread(ctx, th.ID); model.KindOf(err) != model.KindConflict {
		t.Errorf("unarchive of live thread should conflict, got %v", err)
	}
}

func TestListThreadsHidesArchived(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, _ := st.InsertThread(ctx, "a", nil)
	st.InsertThread(ctx, "b", nil)
	if err := st.ArchiveThread(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	visible, err := st.ListThreads(ctx, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].Topic != "b" {
		t.Errorf("default listing = %d threads", len(visible))
	}

	all, _ := st.ListThreads(ctx, "", true)
	if len(all) != 2 {
		t.Errorf("include_archived listing = %d threads, want 2", len(all))
	}

	archived, _ := st.ListThreads(ctx, model.StatusArchived, false)
	if len(archived) != 1 || archived[0].ID != a.ID {
		t.Errorf("archived filter = %d threads", len(archived))
	}

	if _, err := st.ListThreads(ctx, "bogus", false); model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("expected invalid_input for unknown filter, got %v", err)
	}
}

func TestSeqMonotonicAcrossThreads(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	t1, _ := st.InsertThread(ctx, "one", nil)
	t2, _ := st.InsertThread(ctx, "two", nil)

	var last int64
	for i, tid := range []string{t1.ID, t2.ID, t1.ID, t2.ID, t1.ID} {
		m, err := st.InsertMessage(ctx, &model.Message{
			ThreadID:   tid,
			AuthorName: "tester",
			Role:       model.RoleAssistant,
			Content:    "hello",
		})
		if err != nil {
			t.Fatalf("InsertMessage %d: %v", i, err)
		}
		if m.Seq != last+1 {
			t.Errorf("message %d seq = %d, want %d", i, m.Seq, last+1)
		}
		last = m.Seq
	}
}

func TestSeqSurvivesReopen(t *testing.T) {
	log, _ := logger.New(&logger.Config{Level: logger.LevelError})
	path := filepath.Join(t.TempDir(), "bus.db")
	ctx := context.Background()

	st, err := OpenAt(ctx, path, log)
	if err != nil {
		t.Fatal(err)
	}
	th, _ := st.InsertThread(ctx, "persist", nil)
	for i := 0; i < 3; i++ {
		if _, err := st.InsertMessage(ctx, &model.Message{
			ThreadID: th.ID, AuthorName: "a", Role: model.RoleUser, Content: "m",
		}); err != nil {
			t.Fatal(err)
		}
	}
	st.Close()

	st2, err := OpenAt(ctx, path, log)
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	m, err := st2.InsertMessage(ctx, &model.Message{
		ThreadID: th.ID, AuthorName: "a", Role: model.RoleUser, Content: "m",
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.Seq != 4 {
		t.Errorf("seq after reopen = %d, want 4", m.Seq)
	}
}

func TestListMessagesAfterSeq(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	th, _ := st.InsertThread(ctx, "chat", nil)
	for i := 0; i < 5; i++ {
		st.InsertMessage(ctx, &model.Message{
			ThreadID: th.ID, AuthorName: "a", Role: model.RoleAssistant, Content: "m",
		})
	}

	msgs, err := st.ListMessages(ctx, th.ID, 2, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 || msgs[0].Seq != 3 {
		t.Errorf("after_seq=2 returned %d messages starting at %d", len(msgs), msgs[0].Seq)
	}

	msgs, _ = st.ListMessages(ctx, th.ID, 0, 2, true)
	if len(msgs) != 2 {
		t.Errorf("limit=2 returned %d messages", len(msgs))
	}

	if _, err := st.ListMessages(ctx, "missing", 0, 0, true); model.KindOf(err) != model.KindNotFound {
		t.Errorf("expected not_found for unknown thread, got %v", err)
	}
}

func TestListMessagesFiltersSystemRole(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	th, _ := st.InsertThread(ctx, "chat", nil)
	st.InsertMessage(ctx, &model.Message{ThreadID: th.ID, AuthorName: "sys", Role: model.RoleSystem, Content: "prompt"})
	st.InsertMessage(ctx, &model.Message{ThreadID: th.ID, AuthorName: "a", Role: model.RoleUser, Content: "hi"})

	msgs, _ := st.ListMessages(ctx, th.ID, 0, 0, false)
	if len(msgs) != 1 || msgs[0].Role != model.RoleUser {
		t.Errorf("system filter returned %d messages", len(msgs))
	}

	msgs, _ = st.ListMessages(ctx, th.ID, 0, 0, true)
	if len(msgs) != 2 {
		t.Errorf("include_system_prompt returned %d messages, want 2", len(msgs))
	}
}

func TestInsertMessageValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	th, _ := st.InsertThread(ctx, "chat", nil)

	tests := []struct {
		name string
		msg  *model.Message
		kind model.ErrorKind
	}{
		{"missing thread", &model.Message{Role: model.RoleUser, Content: "x"}, model.KindInvalidInput},
		{"bad role", &model.Message{ThreadID: th.ID, Role: "robot", Content: "x"}, model.KindInvalidInput},
		{"empty content", &model.Message{ThreadID: th.ID, Role: model.RoleUser}, model.KindInvalidInput},
		{"unknown thread", &model.Message{ThreadID: "nope", Role: model.RoleUser, Content: "x"}, model.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := st.InsertMessage(ctx, tt.msg)
			if model.KindOf(err) != tt.kind {
				t.Errorf("got %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestDeleteThreadCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	th, _ := st.InsertThread(ctx, "doomed", nil)
	st.InsertMessage(ctx, &model.Message{ThreadID: th.ID, AuthorName: "a", Role: model.RoleUser, Content: "x"})

	if err := st.DeleteThread(ctx, th.ID); err != nil {
		t.Fatal(err)
	}
	n, err := st.CountMessages(ctx, th.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d messages survived thread deletion", n)
	}
	if err := st.DeleteThread(ctx, th.ID); model.KindOf(err) != model.KindNotFound {
		t.Errorf("second delete should be not_found, got %v", err)
	}
}

func TestAgentRegisterAndAuth(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, err := st.RegisterAgent(ctx, "reviewer", "vscode", "sonnet", "go,review")
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if a.Token == "" || a.ID == "" {
		t.Fatal("agent missing id or token")
	}

	if _, err := st.TouchHeartbeat(ctx, a.ID, "wrong"); model.KindOf(err) != model.KindUnauthorized {
		t.Errorf("bad token heartbeat: got %v", err)
	}
	prior, err := st.TouchHeartbeat(ctx, a.ID, a.Token)
	if err != nil {
		t.Fatalf("TouchHeartbeat: %v", err)
	}
	if prior.ID != a.ID {
		t.Errorf("prior agent mismatch: %s", prior.ID)
	}

	if _, err := st.UnregisterAgent(ctx, a.ID, "wrong"); model.KindOf(err) != model.KindUnauthorized {
		t.Errorf("bad token unregister: got %v", err)
	}
	if _, err := st.UnregisterAgent(ctx, a.ID, a.Token); err != nil {
		t.Fatalf("UnregisterAgent: %v", err)
	}
	if _, err := st.FetchAgent(ctx, a.ID); model.KindOf(err) != model.KindNotFound {
		t.Errorf("agent still present after unregister: %v", err)
	}
}

func TestAgentNameDedupe(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, _ := st.RegisterAgent(ctx, "coder", "", "", "")
	second, _ := st.RegisterAgent(ctx, "coder", "", "", "")
	third, _ := st.RegisterAgent(ctx, "coder", "", "", "")

	if first.Name != "coder" {
		t.Errorf("first name = %q", first.Name)
	}
	if second.Name == first.Name || third.Name == second.Name {
		t.Errorf("names not deduped: %q %q %q", first.Name, second.Name, third.Name)
	}

	derived, _ := st.RegisterAgent(ctx, "", "cursor", "opus", "")
	if derived.Name == "" {
		t.Error("empty name should derive from ide/model")
	}
}

func TestTouchActivityUnknownAgentIsNoop(t *testing.T) {
	st := newTestStore(t)
	if err := st.TouchActivity(context.Background(), "ghost", model.ActivityPost); err != nil {
		t.Errorf("TouchActivity on unknown agent: %v", err)
	}
	if err := st.TouchActivity(context.Background(), "", model.ActivityPost); err != nil {
		t.Errorf("TouchActivity with empty id: %v", err)
	}
}
