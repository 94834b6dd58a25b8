package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

type stubGateway struct {
	mu          sync.Mutex
	connects    []string
	disconnects int
	connectErr  error

	channels     map[string]*stubChannel
	failChannels map[string]bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{channels: make(map[string]*stubChannel), failChannels: make(map[string]bool)}
}

func (g *stubGateway) Connect(_ context.Context, identity, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.connectErr != nil {
		return g.connectErr
	}
	g.connects = append(g.connects, identity)
	return nil
}

func (g *stubGateway) Disconnect(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnects++
	return nil
}

func (g *stubGateway) Channel(kind domain.ChannelKind, id string) ports.ChannelHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.channels[id]
	if !ok {
		ch = &stubChannel{id: id, fail: g.failChannels[id], members: make(map[string]bool)}
		g.channels[id] = ch
	}
	return ch
}

type stubChannel struct {
	mu      sync.Mutex
	id      string
	fail    bool
	created int
	watched int
	members map[string]bool
}

func (c *stubChannel) Create(_ context.Context, members []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("channel %s refused", c.id)
	}
	c.created++
	for _, m := range members {
		c.members[m] = true
	}
	return nil
}

func (c *stubChannel) Watch(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watched++
	return nil
}

func (c *stubChannel) IsMember(_ context.Context, identity string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members[identity], nil
}

func (c *stubChannel) AddMembers(_ context.Context, identities []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range identities {
		c.members[id] = true
	}
	return nil
}

func TestChatConnectIdempotent(t *testing.T) {
	t.Parallel()

	gateway := newStubGateway()
	mgr := NewChatManager(ChatManagerDeps{Gateway: gateway})
	ctx := context.Background()

	if err := mgr.Connect(ctx, "alice", "tok"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := mgr.Connect(ctx, "alice", "tok"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if len(gateway.connects) != 1 {
		t.Fatalf("expected one handshake for same identity, got %d", len(gateway.connects))
	}
	if !mgr.State().ConnectedAs("alice") {
		t.Fatalf("expected connected as alice, got %+v", mgr.State())
	}
}

func TestChatConnectSwitchesIdentityWithOneDisconnect(t *testing.T) {
	t.Parallel()

	gateway := newStubGateway()
	mgr := NewChatManager(ChatManagerDeps{Gateway: gateway})
	ctx := context.Background()

	if err := mgr.Connect(ctx, "alice", "tok"); err != nil {
		t.Fatalf("connect alice: %v", err)
	}
	if err := mgr.Connect(ctx, "bob", "tok"); err != nil {
		t.Fatalf("connect bob: %v", err)
	}
	if gateway.disconnects != 1 {
		t.Fatalf("expected exactly one disconnect on identity switch, got %d", gateway.disconnects)
	}
	if !mgr.State().ConnectedAs("bob") {
		t.Fatalf("expected connected as bob, got %+v", mgr.State())
	}
}

func TestChatConnectFailureLandsDisconnected(t *testing.T) {
	t.Parallel()

	gateway := newStubGateway()
	gateway.connectErr = fmt.Errorf("gateway down")
	mgr := NewChatManager(ChatManagerDeps{Gateway: gateway})

	err := mgr.Connect(context.Background(), "alice", "tok")
	if !errors.Is(err, domain.ErrConnectFailed) {
		t.Fatalf("expected connect failed, got %v", err)
	}
	if mgr.State().Phase != domain.PhaseDisconnected {
		t.Fatalf("expected disconnected after failure, got %s", mgr.State().Phase)
	}
}

func TestChatConnectEmptyIdentity(t *testing.T) {
	t.Parallel()

	mgr := NewChatManager(ChatManagerDeps{Gateway: newStubGateway()})
	if err := mgr.Connect(context.Background(), "", "tok"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestChatDisconnectTwiceIsNoop(t *testing.T) {
	t.Parallel()

	gateway := newStubGateway()
	mgr := NewChatManager(ChatManagerDeps{Gateway: gateway})
	ctx := context.Background()

	if err := mgr.Connect(ctx, "alice", "tok"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := mgr.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := mgr.Disconnect(ctx); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if gateway.disconnects != 1 {
		t.Fatalf("expected one gateway disconnect, got %d", gateway.disconnects)
	}
}

func TestProvisionChannelsPartitionsFailures(t *testing.T) {
	t.Parallel()

	gateway := newStubGateway()
	gateway.failChannels[domain.BroadcastChannelID("c2")] = true
	mgr := NewChatManager(ChatManagerDeps{Gateway: gateway})
	if err := mgr.Connect(context.Background(), "alice", "tok"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	result := mgr.ProvisionChannels(context.Background(), "alice", []string{"c1", "c2", "c3"})
	if len(result.Successful) != 2 || result.Successful[0] != "c1" || result.Successful[1] != "c3" {
		t.Fatalf("expected c1 and c3 successful, got %v", result.Successful)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "c2" {
		t.Fatalf("expected c2 failed, got %v", result.Failed)
	}

	// Each surviving counterpart gets its broadcast and DM channel watched.
	for _, counterpart := range []string{"c1", "c3"} {
		for _, id := range []string{domain.BroadcastChannelID(counterpart), domain.DMChannelID("alice", counterpart)} {
			ch := gateway.channels[id]
			if ch == nil || ch.watched == 0 {
				t.Fatalf("expected channel %s to be watched", id)
			}
			if !ch.members["alice"] {
				t.Fatalf("expected alice to be a member of %s", id)
			}
		}
	}
}

func TestProvisionChannelsRequiresConnection(t *testing.T) {
	t.Parallel()

	mgr := NewChatManager(ChatManagerDeps{Gateway: newStubGateway()})
	result := mgr.ProvisionChannels(context.Background(), "alice", []string{"c1", "c2"})
	if len(result.Successful) != 0 {
		t.Fatalf("expected no successes while disconnected, got %v", result.Successful)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected every counterpart to fail while disconnected, got %v", result.Failed)
	}
}
