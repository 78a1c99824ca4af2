package simpleblog

import (
	"context"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) IdentityRegistered(ctx context.Context, identity *Identity) error {
	return nil
}

func (n *NoopEventSink) LoginAttempted(ctx context.Context, succeeded bool) error {
	return nil
}

func (n *NoopEventSink) IdentityDeleted(ctx context.Context, identityID uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) PostCreated(ctx context.Context, post *Post) error {
	return nil
}

func (n *NoopEventSink) PostDeleted(ctx context.Context, postID uuid.UUID) error {
	return nil
}

func (n *NoopEventSink) AssetStored(ctx context.Context, folder string, asset Asset) error {
	return nil
}

func (n *NoopEventSink) AssetRemoveFailed(ctx context.Context, asset Asset, err error) error {
	return nil
}
