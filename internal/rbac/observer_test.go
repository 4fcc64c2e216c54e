package rbac

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type switchSource struct {
	mu  sync.Mutex
	res map[uuid.UUID]Resolution
}

func (s *switchSource) EffectiveFor(ctx context.Context, accountID uuid.UUID) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res[accountID], nil
}

func (s *switchSource) set(id uuid.UUID, r Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res[id] = r
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestObserverFollowsSessionStream(t *testing.T) {
	id := uuid.New()
	src := &switchSource{res: map[uuid.UUID]Resolution{
		id: {Role: RoleAdministrator, Permissions: Defaults(RoleAdministrator)},
	}}

	b := NewBroker()
	obs := NewObserver(src, nil)

	sub := b.Subscribe()
	done := make(chan struct{})
	go func() {
		obs.Run(context.Background(), sub)
		close(done)
	}()

	b.Publish(SessionEvent{Kind: EventSignedIn, AccountID: id})
	waitFor(t, func() bool { return obs.Evaluator().IsAdministrator() })

	b.Publish(SessionEvent{Kind: EventSignedOut})
	waitFor(t, func() bool { return obs.Evaluator().State() == StateUnresolved })

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not stop when the broker closed")
	}
}

func TestObserverAppliesAccessRefresh(t *testing.T) {
	id := uuid.New()
	src := &switchSource{res: map[uuid.UUID]Resolution{
		id: {Role: RoleViewer, Permissions: Defaults(RoleViewer)},
	}}

	b := NewBroker()
	defer b.Close()
	obs := NewObserver(src, nil)
	go obs.Run(context.Background(), b.Subscribe())

	b.Publish(SessionEvent{Kind: EventSignedIn, AccountID: id})
	waitFor(t, func() bool { return obs.Evaluator().Role() == RoleViewer })

	src.set(id, Resolution{Role: RoleEditor, Permissions: Defaults(RoleEditor)})
	b.Publish(SessionEvent{Kind: EventRefreshed, AccountID: id})
	waitFor(t, func() bool { return obs.Evaluator().Role() == RoleEditor })

	if !obs.Evaluator().HasCapability(CapDeleteListing) {
		t.Error("refreshed editor should delete listings")
	}
}
