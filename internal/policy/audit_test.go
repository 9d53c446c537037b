package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/josephgoksu/guidedmodules/models"
)

type fakeMembers map[string]*models.Membership

func (f fakeMembers) Membership(_ context.Context, projectID, userID string) (*models.Membership, error) {
	if userID == "broken" {
		return nil, errors.New("membership lookup failed")
	}
	return f[projectID+"/"+userID], nil
}

type recordingAudit struct {
	decisions []*Decision
	fail      bool
}

func (r *recordingAudit) SaveDecision(_ context.Context, d *Decision) error {
	if r.fail {
		return errors.New("disk full")
	}
	r.decisions = append(r.decisions, d)
	return nil
}

func (r *recordingAudit) ListDecisions(context.Context, ListDecisionsOptions) ([]*Decision, error) {
	return r.decisions, nil
}

func newTestAuthorizer(t *testing.T, audit AuditLog) *Authorizer {
	t.Helper()
	members := fakeMembers{
		"proj-00000001/bob":   {ProjectID: "proj-00000001", UserID: "bob"},
		"proj-00000001/carol": {ProjectID: "proj-00000001", UserID: "carol", IsAdmin: true},
	}
	return NewAuthorizer(newTestEngine(t), members, audit, nil)
}

func TestAuthorizer_Predicates(t *testing.T) {
	authz := newTestAuthorizer(t, nil)
	ctx := context.Background()

	tests := []struct {
		user      string
		wantRead  bool
		wantWrite bool
	}{
		{"alice", true, true},
		{"bob", true, false},
		{"carol", true, true},
		{"mallory", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			actor := models.Actor{UserID: tt.user, OrganizationID: "acme"}
			read, err := authz.CanRead(ctx, actor, testTask)
			if err != nil {
				t.Fatalf("CanRead() error = %v", err)
			}
			write, err := authz.CanWrite(ctx, actor, testTask)
			if err != nil {
				t.Fatalf("CanWrite() error = %v", err)
			}
			if read != tt.wantRead || write != tt.wantWrite {
				t.Errorf("read=%v write=%v, want read=%v write=%v", read, write, tt.wantRead, tt.wantWrite)
			}
		})
	}
}

func TestAuthorizer_RecordsDecisions(t *testing.T) {
	audit := &recordingAudit{}
	authz := newTestAuthorizer(t, audit)
	ctx := context.Background()

	_, _ = authz.CanRead(ctx, models.Actor{UserID: "bob", OrganizationID: "acme"}, testTask)
	_, _ = authz.CanWrite(ctx, models.Actor{UserID: "bob", OrganizationID: "acme"}, testTask)

	if len(audit.decisions) != 2 {
		t.Fatalf("recorded %d decisions, want 2", len(audit.decisions))
	}
	if d := audit.decisions[0]; d.Action != ActionRead || d.Result != ResultAllow || d.ActorID != "bob" {
		t.Errorf("first decision = %+v", d)
	}
	if d := audit.decisions[1]; d.Action != ActionWrite || d.Result != ResultDeny {
		t.Errorf("second decision = %+v", d)
	}
}

func TestAuthorizer_AuditFailureDoesNotBlock(t *testing.T) {
	authz := newTestAuthorizer(t, &recordingAudit{fail: true})

	ok, err := authz.CanRead(context.Background(), models.Actor{UserID: "alice", OrganizationID: "acme"}, testTask)
	if err != nil || !ok {
		t.Errorf("CanRead() = %v, %v; want true, nil", ok, err)
	}
}

func TestAuthorizer_MembershipError(t *testing.T) {
	authz := newTestAuthorizer(t, nil)

	if _, err := authz.CanRead(context.Background(), models.Actor{UserID: "broken", OrganizationID: "acme"}, testTask); err == nil {
		t.Error("CanRead() with a failing membership lookup returned nil error")
	}
}

func TestFunc(t *testing.T) {
	ctx := context.Background()
	actor := models.Actor{UserID: "alice", OrganizationID: "acme"}

	if ok, _ := (Func{}).CanRead(ctx, actor, testTask); ok {
		t.Error("zero Func granted read")
	}
	if ok, _ := (Func{}).CanWrite(ctx, actor, testTask); ok {
		t.Error("zero Func granted write")
	}

	all := AllowAll()
	r, _ := all.CanRead(ctx, actor, testTask)
	w, _ := all.CanWrite(ctx, actor, testTask)
	if !r || !w {
		t.Errorf("AllowAll() read=%v write=%v", r, w)
	}

	readOnly := Func{Read: func(_ context.Context, a models.Actor, _ *models.Task) (bool, error) {
		return a.UserID == "alice", nil
	}}
	if ok, _ := readOnly.CanRead(ctx, actor, testTask); !ok {
		t.Error("custom read predicate not consulted")
	}
}
