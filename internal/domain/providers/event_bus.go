package providers

import (
	"context"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
)

// EventBus carries fundraise change events between processes. Delivery is
// best effort: slow subscribers may miss events.
type EventBus interface {
	Publish(ctx context.Context, channel string, event *entities.FundraiseEvent) error

	// Subscribe returns a channel that is closed when ctx ends or the
	// subscription is torn down
	Subscribe(ctx context.Context, channel string) (<-chan *entities.FundraiseEvent, error)

	Unsubscribe(ctx context.Context, channel string) error
	Close() error
}

// EventChannelFundraiseUpdates carries created and updated events for every record
const EventChannelFundraiseUpdates = "fundraise:updates"
