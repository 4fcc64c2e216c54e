package rbac

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubSource struct {
	mu      sync.Mutex
	res     map[uuid.UUID]Resolution
	err     error
	calls   int
	blockCh chan struct{}
}

func (s *stubSource) EffectiveFor(ctx context.Context, accountID uuid.UUID) (Resolution, error) {
	s.mu.Lock()
	s.calls++
	block := s.blockCh
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if s.err != nil {
		return Resolution{}, s.err
	}
	return s.res[accountID], nil
}

func TestEvaluatorFailClosedWhileUnresolved(t *testing.T) {
	ev := NewEvaluator(&stubSource{})
	for _, c := range Capabilities() {
		if ev.HasCapability(c) {
			t.Errorf("unresolved evaluator granted %s", c)
		}
	}
	if ev.HasMinimumRole(RoleViewer) {
		t.Error("unresolved evaluator granted minimum role")
	}
	if ev.IsAdministrator() {
		t.Error("unresolved evaluator claimed administrator")
	}
}

func TestEvaluatorResolvesRoleDefaults(t *testing.T) {
	id := uuid.New()
	src := &stubSource{res: map[uuid.UUID]Resolution{
		id: {Role: RoleEditor, Permissions: Defaults(RoleEditor)},
	}}
	ev := NewEvaluator(src)
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: id})

	if ev.State() != StateResolved {
		t.Fatalf("state = %v, want resolved", ev.State())
	}
	if !ev.HasCapability(CapEditListing) {
		t.Error("editor should edit listings")
	}
	if ev.HasCapability(CapDeleteListing) {
		t.Error("editor should not delete listings")
	}
	if !ev.HasMinimumRole(RoleCollaborator) {
		t.Error("editor should satisfy minimum collaborator")
	}
	if ev.IsAdministrator() {
		t.Error("editor is not administrator")
	}
}

func TestEvaluatorCustomOverrideReplacesDefaults(t *testing.T) {
	// Editor default denies delete; a custom set that grants it wins
	// wholesale, it is not merged with the role default.
	id := uuid.New()
	custom := PermissionSet{CapDeleteListing: true}
	src := &stubSource{res: map[uuid.UUID]Resolution{
		id: {Role: RoleEditor, Permissions: custom},
	}}
	ev := NewEvaluator(src)
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: id})

	if !ev.HasCapability(CapDeleteListing) {
		t.Error("custom override should grant delete-listing")
	}
	if ev.HasCapability(CapViewListings) {
		t.Error("custom override omits view-listings, so it must be denied")
	}
}

func TestEvaluatorErrorStateFailClosed(t *testing.T) {
	src := &stubSource{err: errors.New("profile store unavailable")}
	ev := NewEvaluator(src)
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: uuid.New()})

	if ev.State() != StateError {
		t.Fatalf("state = %v, want error", ev.State())
	}
	if ev.Err() == nil {
		t.Fatal("expected resolution error")
	}
	for _, c := range Capabilities() {
		if ev.HasCapability(c) {
			t.Errorf("errored evaluator granted %s", c)
		}
	}
	if ev.IsAdministrator() {
		t.Error("errored evaluator claimed administrator")
	}
}

func TestEvaluatorSignOutClearsState(t *testing.T) {
	id := uuid.New()
	src := &stubSource{res: map[uuid.UUID]Resolution{
		id: {Role: RoleAdministrator, Permissions: Defaults(RoleAdministrator)},
	}}
	ev := NewEvaluator(src)
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: id})
	if !ev.IsAdministrator() {
		t.Fatal("expected administrator after sign-in")
	}

	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedOut})
	if ev.State() != StateUnresolved {
		t.Fatalf("state = %v, want unresolved after sign-out", ev.State())
	}
	if ev.HasCapability(CapViewListings) {
		t.Error("signed-out evaluator granted view-listings")
	}
}

func TestEvaluatorStaleResolutionDiscarded(t *testing.T) {
	// A sign-out arriving while a resolution is in flight must win: the
	// late result is discarded, not applied.
	id := uuid.New()
	block := make(chan struct{})
	src := &stubSource{
		res:     map[uuid.UUID]Resolution{id: {Role: RoleAdministrator, Permissions: Defaults(RoleAdministrator)}},
		blockCh: block,
	}
	ev := NewEvaluator(src)

	done := make(chan struct{})
	go func() {
		ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedIn, AccountID: id})
		close(done)
	}()

	// Wait until the resolution is actually in flight before superseding
	// it, then let it finish.
	for {
		src.mu.Lock()
		started := src.calls > 0
		src.mu.Unlock()
		if started {
			break
		}
		time.Sleep(time.Millisecond)
	}
	ev.HandleEvent(context.Background(), SessionEvent{Kind: EventSignedOut})
	close(block)
	<-done

	if ev.State() != StateUnresolved {
		t.Fatalf("state = %v, want unresolved (stale resolution must be discarded)", ev.State())
	}
	if ev.HasCapability(CapManageUsers) {
		t.Error("stale resolution leaked into evaluator state")
	}
}

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	id := uuid.New()
	b.Publish(SessionEvent{Kind: EventSignedIn, AccountID: id})

	ev := <-sub
	if ev.Kind != EventSignedIn || ev.AccountID != id {
		t.Fatalf("unexpected event %+v", ev)
	}

	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("subscriber channel should be closed")
	}
}
