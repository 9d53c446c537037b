package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/guidedmodules/internal/policy"
	"github.com/josephgoksu/guidedmodules/internal/taskgraph"
	"github.com/josephgoksu/guidedmodules/models"
	"github.com/josephgoksu/guidedmodules/store"
	"github.com/josephgoksu/guidedmodules/types"
)

// fixture seeds one project in a fresh organization so that contract tests
// can share a database.
type fixture struct {
	s       *SQLStore
	org     string
	project *models.Project
}

func newFixture(t *testing.T, s *SQLStore) *fixture {
	t.Helper()
	org := "org-" + uuid.New().String()[:8]
	p := models.NewProject(org, "Fixture")
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return &fixture{s: s, org: org, project: p}
}

func (f *fixture) task(t *testing.T, module, editor string) *models.Task {
	t.Helper()
	tk := models.NewTask(f.project.ID, f.org, editor, module, 1, module)
	if err := f.s.CreateTask(context.Background(), tk); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return tk
}

func (f *fixture) answer(t *testing.T, rec *models.AnswerRecord) *models.AnswerRecord {
	t.Helper()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ActorID == "" {
		rec.ActorID = "alice"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := f.s.AppendAnswer(context.Background(), rec); err != nil {
		t.Fatalf("AppendAnswer() error = %v", err)
	}
	return rec
}

// runContract exercises the store.Store contract against s.
func runContract(t *testing.T, s *SQLStore) {
	t.Run("Tasks", func(t *testing.T) { testTasks(t, newFixture(t, s)) })
	t.Run("Answers", func(t *testing.T) { testAnswers(t, newFixture(t, s)) })
	t.Run("ParentTaskIDs", func(t *testing.T) { testParents(t, newFixture(t, s)) })
	t.Run("InTx", func(t *testing.T) { testInTx(t, newFixture(t, s)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newFixture(t, s)) })
	t.Run("Files", func(t *testing.T) { testFiles(t, s) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newFixture(t, s)) })
	t.Run("Decisions", func(t *testing.T) { testDecisions(t, s) })
	t.Run("IDPrefixes", func(t *testing.T) { testIDPrefixes(t, newFixture(t, s)) })
}

func testTasks(t *testing.T, f *fixture) {
	ctx := context.Background()
	a := f.task(t, "app", "alice")
	b := f.task(t, "contact", "bob")

	got, err := f.s.GetTask(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.ModuleKey != "app" || got.EditorID != "alice" || got.State != models.TaskActive || got.DeletedAt != nil {
		t.Errorf("GetTask() = %+v", got)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
	}

	if _, err := f.s.GetTask(ctx, "task-ffffffff"); types.KindOf(err) != types.KindNotFound {
		t.Errorf("GetTask(missing) error = %v, want not found", err)
	}

	now := time.Now().UTC()
	b.State, b.DeletedAt, b.UpdatedAt = models.TaskDeleted, &now, now
	if err := f.s.UpdateTask(ctx, b); err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}

	active, err := f.s.ListTasks(ctx, taskgraph.TaskFilter{OrganizationID: f.org})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != a.ID {
		t.Errorf("active tasks = %v, want [%s]", ids(active), a.ID)
	}

	all, _ := f.s.ListTasks(ctx, taskgraph.TaskFilter{OrganizationID: f.org, IncludeDeleted: true})
	if len(all) != 2 || all[0].ID != b.ID {
		t.Errorf("all tasks = %v, want deleted %s first (most recent)", ids(all), b.ID)
	}

	byModule, _ := f.s.ListTasks(ctx, taskgraph.TaskFilter{OrganizationID: f.org, ModuleKey: "contact", IncludeDeleted: true})
	if len(byModule) != 1 || !byModule[0].IsDeleted() || byModule[0].DeletedAt == nil {
		t.Errorf("contact tasks = %+v", byModule)
	}
}

func testAnswers(t *testing.T, f *fixture) {
	ctx := context.Background()
	parent := f.task(t, "app", "alice")
	c1 := f.task(t, "contact", "alice")
	c2 := f.task(t, "contact", "alice")

	if rec, err := f.s.LatestAnswer(ctx, parent.ID, "name"); err != nil || rec != nil {
		t.Fatalf("LatestAnswer(untouched) = %v, %v; want nil, nil", rec, err)
	}

	first := f.answer(t, &models.AnswerRecord{TaskID: parent.ID, QuestionKey: "name", Value: "Acme"})
	second := f.answer(t, &models.AnswerRecord{TaskID: parent.ID, QuestionKey: "name", Value: map[string]any{"n": 2.0}})
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("seqs = %d, %d; want 1, 2", first.Seq, second.Seq)
	}
	f.answer(t, &models.AnswerRecord{TaskID: parent.ID, QuestionKey: "vendors", AnsweredByTasks: []string{c2.ID, c1.ID}})
	f.answer(t, &models.AnswerRecord{TaskID: parent.ID, QuestionKey: "notes", Skipped: true})
	f.answer(t, &models.AnswerRecord{TaskID: parent.ID, QuestionKey: "logo", AnsweredByFile: &models.FileRef{
		Name: "logo.png", ContentType: "image/png", Size: 3, SHA256: digest([]byte("png")),
	}})

	latest, err := f.s.LatestAnswers(ctx, parent.ID)
	if err != nil {
		t.Fatalf("LatestAnswers() error = %v", err)
	}
	if len(latest) != 4 {
		t.Fatalf("LatestAnswers() has %d keys, want 4", len(latest))
	}
	if m, ok := latest["name"].Value.(map[string]any); !ok || m["n"] != 2.0 {
		t.Errorf("name = %#v, want the second value", latest["name"].Value)
	}
	if got := latest["vendors"].AnsweredByTasks; len(got) != 2 || got[0] != c2.ID || got[1] != c1.ID {
		t.Errorf("vendors = %v, want link order preserved", got)
	}
	if n := latest["notes"]; !n.Skipped || n.Value != nil {
		t.Errorf("notes = %+v, want skipped null", n)
	}
	if fr := latest["logo"].AnsweredByFile; fr == nil || fr.Name != "logo.png" || fr.Size != 3 {
		t.Errorf("logo file = %+v", fr)
	}

	hist, err := f.s.AnswerHistory(ctx, parent.ID, "name")
	if err != nil {
		t.Fatalf("AnswerHistory() error = %v", err)
	}
	if len(hist) != 2 || hist[0].Value != "Acme" || hist[1].Seq != 2 {
		t.Errorf("history = %+v", hist)
	}

	f.answer(t, &models.AnswerRecord{TaskID: parent.ID, QuestionKey: "name", Cleared: true})
	rec, _ := f.s.LatestAnswer(ctx, parent.ID, "name")
	if rec == nil || !rec.Cleared || rec.Effective() {
		t.Errorf("LatestAnswer after clear = %+v", rec)
	}
}

func testParents(t *testing.T, f *fixture) {
	ctx := context.Background()
	p1 := f.task(t, "app", "alice")
	p2 := f.task(t, "app", "alice")
	child := f.task(t, "contact", "alice")
	other := f.task(t, "contact", "alice")

	f.answer(t, &models.AnswerRecord{TaskID: p1.ID, QuestionKey: "owner", AnsweredByTasks: []string{child.ID}})
	f.answer(t, &models.AnswerRecord{TaskID: p2.ID, QuestionKey: "owner", AnsweredByTasks: []string{child.ID}})

	got, err := f.s.ParentTaskIDs(ctx, child.ID)
	if err != nil {
		t.Fatalf("ParentTaskIDs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("parents = %v, want 2", got)
	}

	// A superseded link no longer counts, nor does a cleared one.
	f.answer(t, &models.AnswerRecord{TaskID: p1.ID, QuestionKey: "owner", AnsweredByTasks: []string{other.ID}})
	f.answer(t, &models.AnswerRecord{TaskID: p2.ID, QuestionKey: "owner", Cleared: true})

	got, _ = f.s.ParentTaskIDs(ctx, child.ID)
	if len(got) != 0 {
		t.Errorf("parents after relink = %v, want none", got)
	}
	got, _ = f.s.ParentTaskIDs(ctx, other.ID)
	if len(got) != 1 || got[0] != p1.ID {
		t.Errorf("parents of other = %v, want [%s]", got, p1.ID)
	}
}

func testInTx(t *testing.T, f *fixture) {
	ctx := context.Background()
	boom := errors.New("boom")

	var rolled *models.Task
	err := f.s.InTx(ctx, func(tx store.Repository) error {
		rolled = models.NewTask(f.project.ID, f.org, "alice", "app", 1, "app")
		if err := tx.CreateTask(ctx, rolled); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}
	if _, err := f.s.GetTask(ctx, rolled.ID); types.KindOf(err) != types.KindNotFound {
		t.Errorf("rolled back task still present: %v", err)
	}

	var kept *models.Task
	err = f.s.InTx(ctx, func(tx store.Repository) error {
		kept = models.NewTask(f.project.ID, f.org, "alice", "app", 1, "app")
		if err := tx.CreateTask(ctx, kept); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return tx.(store.Store).InTx(ctx, func(inner store.Repository) error {
			_, err := inner.GetTask(ctx, kept.ID)
			return err
		})
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}
	if _, err := f.s.GetTask(ctx, kept.ID); err != nil {
		t.Errorf("committed task missing: %v", err)
	}
}

func testMembers(t *testing.T, f *fixture) {
	ctx := context.Background()
	pid := f.project.ID

	if m, err := f.s.Membership(ctx, pid, "bob"); err != nil || m != nil {
		t.Fatalf("Membership(non-member) = %v, %v", m, err)
	}
	_ = f.s.AddMember(ctx, &models.Membership{ProjectID: pid, UserID: "bob"})
	_ = f.s.AddMember(ctx, &models.Membership{ProjectID: pid, UserID: "alice", IsAdmin: true})
	if err := f.s.AddMember(ctx, &models.Membership{ProjectID: pid, UserID: "bob", IsAdmin: true}); err != nil {
		t.Fatalf("AddMember(upsert) error = %v", err)
	}

	m, err := f.s.Membership(ctx, pid, "bob")
	if err != nil || m == nil || !m.IsAdmin {
		t.Errorf("Membership(bob) = %+v, %v; want admin", m, err)
	}
	members, _ := f.s.ListMembers(ctx, pid)
	if len(members) != 2 || members[0].UserID != "alice" {
		t.Errorf("ListMembers() = %+v", members)
	}

	f.project.RootTaskID = f.task(t, "project", "alice").ID
	f.project.UpdatedAt = time.Now().UTC()
	if err := f.s.UpdateProject(ctx, f.project); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	got, err := f.s.GetProject(ctx, pid)
	if err != nil || got.RootTaskID != f.project.RootTaskID {
		t.Errorf("GetProject() = %+v, %v", got, err)
	}
	list, _ := f.s.ListProjects(ctx, f.org)
	if len(list) != 1 || list[0].ID != pid {
		t.Errorf("ListProjects() = %+v", list)
	}
	if _, err := f.s.GetProject(ctx, "proj-ffffffff"); types.KindOf(err) != types.KindNotFound {
		t.Errorf("GetProject(missing) error = %v", err)
	}
}

func testFiles(t *testing.T, s *SQLStore) {
	ctx := context.Background()
	content := []byte("hello " + uuid.New().String())
	ref := &models.FileRef{Name: "hello.txt", ContentType: "text/plain", Size: int64(len(content)), SHA256: digest(content)}

	if err := s.PutFile(ctx, ref, content); err != nil {
		t.Fatalf("PutFile() error = %v", err)
	}
	if err := s.PutFile(ctx, ref, content); err != nil {
		t.Fatalf("PutFile(again) error = %v", err)
	}

	got, data, err := s.GetFile(ctx, ref.SHA256)
	if err != nil {
		t.Fatalf("GetFile() error = %v", err)
	}
	if string(data) != string(content) || got.Name != "hello.txt" || got.Size != int64(len(content)) {
		t.Errorf("GetFile() = %+v %q", got, data)
	}

	bad := *ref
	bad.SHA256 = digest([]byte("other"))
	if err := s.PutFile(ctx, &bad, content); types.KindOf(err) != types.KindValidation {
		t.Errorf("PutFile(mismatch) error = %v, want validation", err)
	}
	if _, _, err := s.GetFile(ctx, digest([]byte("never stored "+uuid.New().String()))); types.KindOf(err) != types.KindNotFound {
		t.Errorf("GetFile(missing) error = %v", err)
	}
}

func testEvents(t *testing.T, f *fixture) {
	ctx := context.Background()
	tk := f.task(t, "app", "alice")
	v := 3.5
	base := time.Now().UTC()

	events := []*models.Event{
		{Type: "task-question-answer", ActorID: "alice", TaskID: tk.ID, ProjectID: f.project.ID, QuestionKey: "name", CreatedAt: base},
		{Type: "task-question-skip", ActorID: "alice", TaskID: tk.ID, QuestionKey: "notes", Value: &v, CreatedAt: base.Add(time.Millisecond)},
		{Type: "task-done", ActorID: "alice", TaskID: tk.ID, Extra: map[string]any{"module": "app"}, CreatedAt: base.Add(2 * time.Millisecond)},
	}
	for _, e := range events {
		if err := f.s.RecordEvent(ctx, e); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}

	got, err := f.s.ListEvents(ctx, store.EventFilter{TaskID: tk.ID})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 3 || got[0].Type != "task-question-answer" || got[2].Extra["module"] != "app" {
		t.Fatalf("ListEvents() = %+v", got)
	}
	if got[1].Value == nil || *got[1].Value != 3.5 {
		t.Errorf("event value = %v", got[1].Value)
	}

	done, _ := f.s.ListEvents(ctx, store.EventFilter{TaskID: tk.ID, Type: "task-done"})
	if len(done) != 1 {
		t.Errorf("task-done events = %d, want 1", len(done))
	}
	limited, _ := f.s.ListEvents(ctx, store.EventFilter{TaskID: tk.ID, Limit: 2})
	if len(limited) != 2 {
		t.Errorf("limited events = %d, want 2", len(limited))
	}
}

func testDecisions(t *testing.T, s *SQLStore) {
	ctx := context.Background()
	taskID := models.NewTaskID()

	allow := &policy.Decision{
		PolicyPath: policy.DefaultPolicyPackage, Action: policy.ActionRead, Result: policy.ResultAllow,
		TaskID: taskID, ActorID: "alice", Input: map[string]any{"action": "read"},
	}
	deny := &policy.Decision{
		PolicyPath: policy.DefaultPolicyPackage, Action: policy.ActionWrite, Result: policy.ResultDeny,
		TaskID: taskID, ActorID: "alice", Violations: []string{"frozen"},
		EvaluatedAt: time.Now().UTC().Add(time.Second),
	}
	for _, d := range []*policy.Decision{allow, deny} {
		if err := s.SaveDecision(ctx, d); err != nil {
			t.Fatalf("SaveDecision() error = %v", err)
		}
		if d.ID == 0 || d.DecisionID == "" {
			t.Errorf("SaveDecision() did not assign ids: %+v", d)
		}
	}

	got, err := s.ListDecisions(ctx, policy.ListDecisionsOptions{TaskID: taskID})
	if err != nil {
		t.Fatalf("ListDecisions() error = %v", err)
	}
	if len(got) != 2 || got[0].Result != policy.ResultDeny || got[0].Violations[0] != "frozen" {
		t.Fatalf("ListDecisions() = %+v", got)
	}
	if got[1].Action != policy.ActionRead || got[1].Input == nil {
		t.Errorf("allow decision = %+v", got[1])
	}

	denied, _ := s.ListDecisions(ctx, policy.ListDecisionsOptions{TaskID: taskID, Result: policy.ResultDeny})
	if len(denied) != 1 {
		t.Errorf("deny decisions = %d, want 1", len(denied))
	}
}

func testIDPrefixes(t *testing.T, f *fixture) {
	ctx := context.Background()
	tk := f.task(t, "app", "alice")

	got, err := f.s.FindTaskIDsByPrefix(ctx, tk.ID[:9])
	if err != nil {
		t.Fatalf("FindTaskIDsByPrefix() error = %v", err)
	}
	if !contains(got, tk.ID) {
		t.Errorf("FindTaskIDsByPrefix(%q) = %v, missing %s", tk.ID[:9], got, tk.ID)
	}

	got, err = f.s.FindTaskIDsByPrefix(ctx, tk.ID)
	if err != nil || len(got) != 1 || got[0] != tk.ID {
		t.Errorf("FindTaskIDsByPrefix(full) = %v, %v", got, err)
	}

	got, err = f.s.FindProjectIDsByPrefix(ctx, f.project.ID)
	if err != nil || len(got) != 1 || got[0] != f.project.ID {
		t.Errorf("FindProjectIDsByPrefix(full) = %v, %v", got, err)
	}

	// LIKE wildcards in the prefix match literally.
	got, err = f.s.FindTaskIDsByPrefix(ctx, "task-%")
	if err != nil {
		t.Fatalf("FindTaskIDsByPrefix() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("FindTaskIDsByPrefix(wildcard) = %v, want none", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func ids(ts []*models.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
