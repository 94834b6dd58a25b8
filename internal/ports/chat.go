package ports

import (
	"context"

	"github.com/yannsalvignol/cherrizbox-app-sub001/internal/domain"
)

// ChannelHandle addresses one chat channel. Create treats "already exists"
// as success.
type ChannelHandle interface {
	Create(ctx context.Context, members []string) error
	Watch(ctx context.Context) error
	IsMember(ctx context.Context, identity string) (bool, error)
	AddMembers(ctx context.Context, identities []string) error
}

// ChatGateway is the transport to the chat service. One logical connection
// exists per process; Connect replaces any previous session server-side.
type ChatGateway interface {
	Connect(ctx context.Context, identity, authToken string) error
	Disconnect(ctx context.Context) error
	Channel(kind domain.ChannelKind, id string) ChannelHandle
}
