package providers

import (
	"context"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
)

// AnnouncementSource is a feed of raw fundraising announcements
type AnnouncementSource interface {
	// Name identifies the source in logs, metrics and stored records
	Name() string

	// Fetch returns the items currently published by the feed
	Fetch(ctx context.Context) ([]entities.RawAnnouncement, error)
}
