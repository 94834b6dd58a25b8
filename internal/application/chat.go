package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/ports"
)

// ChatManager owns the single logical chat connection for the process and
// provisions per-creator channels. State lives here as an explicit value;
// there are no package-level connection flags, so tests can run independent
// instances.
type ChatManager struct {
	gateway ports.ChatGateway
	logger  *slog.Logger

	mu    sync.Mutex
	state domain.ConnectionState
}

type ChatManagerDeps struct {
	Gateway ports.ChatGateway
	Logger  *slog.Logger
}

func NewChatManager(deps ChatManagerDeps) *ChatManager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatManager{
		gateway: deps.Gateway,
		logger:  logger,
		state:   domain.ConnectionState{Phase: domain.PhaseDisconnected},
	}
}

func (m *ChatManager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect brings the connection to Connected(identity). Connecting to the
// identity already connected is a no-op without a second handshake. When a
// different identity is connected, one best-effort disconnect runs first.
// On failure the state lands back on Disconnected; it never parks on
// Connecting.
func (m *ChatManager) Connect(ctx context.Context, identity, authToken string) error {
	if identity == "" {
		return domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.ConnectedAs(identity) {
		return nil
	}
	if m.state.Phase == domain.PhaseConnected {
		previous := m.state.Identity
		if err := m.gateway.Disconnect(ctx); err != nil {
			m.logger.WarnContext(ctx, "disconnect before reconnect failed", "identity", previous, "error", err)
		}
		m.state = domain.ConnectionState{Phase: domain.PhaseDisconnected}
	}

	m.state = domain.ConnectionState{Phase: domain.PhaseConnecting, Identity: identity}
	if err := m.gateway.Connect(ctx, identity, authToken); err != nil {
		m.state = domain.ConnectionState{Phase: domain.PhaseDisconnected}
		return fmt.Errorf("%w: %v", domain.ErrConnectFailed, err)
	}
	m.state = domain.ConnectionState{Phase: domain.PhaseConnected, Identity: identity}
	m.logger.InfoContext(ctx, "chat connected", "identity", identity)
	return nil
}

// Disconnect tears the connection down. Disconnecting while already
// disconnected is a no-op.
func (m *ChatManager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Phase == domain.PhaseDisconnected {
		return nil
	}
	identity := m.state.Identity
	m.state = domain.ConnectionState{Phase: domain.PhaseDisconnected}
	if err := m.gateway.Disconnect(ctx); err != nil {
		m.logger.WarnContext(ctx, "chat disconnect failed", "identity", identity, "error", err)
		return err
	}
	m.logger.InfoContext(ctx, "chat disconnected", "identity", identity)
	return nil
}

// ProvisionResult partitions counterparts into those whose channels were
// fully provisioned and those with at least one failure. The caller decides
// whether to alert; nothing is retried automatically.
type ProvisionResult struct {
	Successful []string
	Failed     []string
}

// ProvisionChannels ensures, for every counterpart, the broadcast and DM
// channels exist, are watched, and include the current identity. Counterparts
// run concurrently and independently; one failure never blocks the rest.
func (m *ChatManager) ProvisionChannels(ctx context.Context, identity string, counterpartIDs []string) ProvisionResult {
	var wg sync.WaitGroup
	var resMu sync.Mutex
	result := ProvisionResult{Successful: []string{}, Failed: []string{}}

	for _, counterpartID := range counterpartIDs {
		wg.Add(1)
		go func(counterpartID string) {
			defer wg.Done()
			err := m.provisionCounterpart(ctx, identity, counterpartID)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				m.logger.WarnContext(ctx, "channel provisioning failed", "counterpart", counterpartID, "error", err)
				result.Failed = append(result.Failed, counterpartID)
				return
			}
			result.Successful = append(result.Successful, counterpartID)
		}(counterpartID)
	}
	wg.Wait()

	sort.Strings(result.Successful)
	sort.Strings(result.Failed)
	return result
}

func (m *ChatManager) provisionCounterpart(ctx context.Context, identity, counterpartID string) error {
	if !m.State().ConnectedAs(identity) {
		return domain.ErrNotConnected
	}
	for _, desc := range domain.CounterpartChannels(identity, counterpartID) {
		handle := m.gateway.Channel(desc.Kind, desc.ID)
		// "Already exists" is success inside the gateway adapter.
		if err := handle.Create(ctx, desc.Members); err != nil {
			return fmt.Errorf("create channel %s: %w", desc.ID, err)
		}
		if err := handle.Watch(ctx); err != nil {
			return fmt.Errorf("watch channel %s: %w", desc.ID, err)
		}
		member, err := handle.IsMember(ctx, identity)
		if err != nil {
			return fmt.Errorf("membership check %s: %w", desc.ID, err)
		}
		if !member {
			if err := handle.AddMembers(ctx, []string{identity}); err != nil {
				return fmt.Errorf("join channel %s: %w", desc.ID, err)
			}
		}
	}
	return nil
}
