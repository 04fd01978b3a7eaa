package engram

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sentinel/discovery-engine/internal/core"
)

func fixedClock(t time.Time) Clock {
	calls := 0
	return func() time.Time {
		calls++
		return t.Add(time.Duration(calls) * time.Millisecond)
	}
}

func TestSession_OpenAppendCloseVerify(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	tenant := core.NewTenantID()
	sess := newSession(tenant, "aws-connector", "discover EC2 instances", nil, store, fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	sess.RecordDecision("scan strategy", []string{"full rescan", "incremental"}, "incremental", "cheaper, source supports pagination tokens")
	sess.RecordAction("api_call", "ec2:DescribeInstances", "success", map[string]int64{"instances": 2})
	sess.RecordDeadEnd("region eu-west-3 unreachable", "timeout after 3 attempts")

	finalized, err := sess.Close(context.Background(), OutcomePartial, "discovered 2 hosts, 1 region skipped")
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if finalized.ContentHash == "" {
		t.Fatal("expected content hash to be set on close")
	}

	got, err := store.Get(context.Background(), tenant, sess.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Decisions) != 1 || len(got.Actions) != 1 || len(got.DeadEnds) != 1 {
		t.Fatalf("round trip lost records: %+v", got)
	}
	if got.Decisions[0].Chosen != "incremental" {
		t.Errorf("decision not preserved: %+v", got.Decisions[0])
	}
	if !got.VerifyIntegrity() {
		t.Error("expected retrieved engram to verify")
	}
}

func TestStore_TamperDetected(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tenant := core.NewTenantID()
	sess := newSession(tenant, "agent", "intent", nil, store, fixedClock(time.Now()))
	sess.RecordAction("probe", "host-1", "success", nil)
	if _, err := sess.Close(context.Background(), OutcomeSuccess, "ok"); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Find the written file and tamper with it.
	var path string
	_ = eachFile(dir, func(p string) { path = p })
	if path == "" {
		t.Fatal("no engram file written")
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	tampered := strings.Replace(string(buf), `"intent"`, `"XXXXXX"`, 1)
	if err := os.WriteFile(path, []byte(tampered), 0o644); err != nil {
		t.Fatalf("write tampered: %v", err)
	}

	if _, err := store.Get(context.Background(), tenant, sess.ID()); err != ErrIntegrityViolation {
		t.Fatalf("expected ErrIntegrityViolation, got %v", err)
	}
}

func TestSave_RejectsUnfinalized(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	e := &Engram{ID: SessionID{}, Tenant: core.NewTenantID(), StartedAt: time.Now()}
	if err := store.Save(context.Background(), e); err != ErrNotFinalized {
		t.Fatalf("expected ErrNotFinalized, got %v", err)
	}
}

func TestList_FiltersByAgentAndTenant(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t1, t2 := core.NewTenantID(), core.NewTenantID()

	mk := func(tenant core.TenantID, agent string) {
		s := newSession(tenant, agent, "intent", nil, store, fixedClock(time.Now()))
		s.RecordAction("probe", "x", "success", nil)
		if _, err := s.Close(context.Background(), OutcomeSuccess, "ok"); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	mk(t1, "scanner")
	mk(t1, "hunter")
	mk(t2, "scanner")

	got, err := store.List(context.Background(), Query{Tenant: t1, AgentID: "scanner"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
}

func TestBufferedStore_OverflowReturnsUnavailable(t *testing.T) {
	fail := &alwaysFailStore{}
	buf := NewBufferedStore(fail, 1)

	e1 := &Engram{ID: SessionID{}, Tenant: core.NewTenantID(), ContentHash: "h1"}
	e2 := &Engram{ID: SessionID{}, Tenant: core.NewTenantID(), ContentHash: "h2"}

	if err := buf.Save(context.Background(), e1); err != nil {
		t.Fatalf("first buffered save should succeed: %v", err)
	}
	if err := buf.Save(context.Background(), e2); err != core.ErrEngramStoreUnavailable {
		t.Fatalf("expected ErrEngramStoreUnavailable on overflow, got %v", err)
	}
}

type alwaysFailStore struct{}

func (alwaysFailStore) Save(context.Context, *Engram) error { return errAlwaysFail }
func (alwaysFailStore) Get(context.Context, core.TenantID, SessionID) (*Engram, error) {
	return nil, errAlwaysFail
}
func (alwaysFailStore) List(context.Context, Query) ([]*Engram, error) { return nil, errAlwaysFail }

var errAlwaysFail = &storeErr{"store unavailable"}

type storeErr struct{ msg string }

func (e *storeErr) Error() string { return e.msg }

func eachFile(root string, fn func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		fn(path)
		return nil
	})
}

