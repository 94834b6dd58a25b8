package domain

import "strings"

// DMChannelID derives the direct-message channel id for a pair of identities.
// The derivation is symmetric: both argument orders resolve to the same id.
func DMChannelID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return "dm_" + a + "_" + b
}

// BroadcastChannelID derives the shared broadcast channel id scoped to a
// creator.
func BroadcastChannelID(creatorID string) string {
	return "brd_" + creatorID
}

// CounterpartChannels returns the two descriptors provisioned per counterpart:
// the creator-scoped broadcast channel and the symmetric DM channel.
func CounterpartChannels(identity, counterpartID string) []ChannelDescriptor {
	return []ChannelDescriptor{
		{
			ID:      BroadcastChannelID(counterpartID),
			Kind:    ChannelKindGroup,
			Members: []string{identity, counterpartID},
		},
		{
			ID:      DMChannelID(identity, counterpartID),
			Kind:    ChannelKindDirectMessage,
			Members: []string{identity, counterpartID},
		},
	}
}
