package entities

import "time"

// MaxEnrichmentAttempts is the attempt ceiling after which an unprocessed
// record is left alone for good.
const MaxEnrichmentAttempts = 3

// EnrichmentState is the position of a record in the enrichment lifecycle
type EnrichmentState string

const (
	EnrichmentStateUnprocessed EnrichmentState = "unprocessed"
	EnrichmentStateProcessed   EnrichmentState = "processed"
	EnrichmentStateExhausted   EnrichmentState = "exhausted"
)

// Fundraise is the canonical, de-duplicated fundraising announcement
type Fundraise struct {
	ID                   string     `json:"id" db:"id"`
	ExternalID           string     `json:"external_id,omitempty" db:"external_id"`
	ProjectName          string     `json:"project_name" db:"project_name"`
	AmountRaisedUSD      *float64   `json:"amount_raised_usd" db:"amount_raised_usd"`
	RoundType            *string    `json:"round_type" db:"round_type"`
	LeadInvestor         *string    `json:"lead_investor" db:"lead_investor"`
	OtherInvestors       []string   `json:"other_investors" db:"-"`
	Token                *string    `json:"token" db:"token"`
	Description          string     `json:"description" db:"description"`
	CuratorNotes         *string    `json:"curator_notes,omitempty" db:"curator_notes"`
	Category             *string    `json:"category" db:"category"`
	Tags                 []string   `json:"tags" db:"-"`
	Website              *string    `json:"website,omitempty" db:"website"`
	Valuation            *string    `json:"valuation,omitempty" db:"valuation"`
	AnnouncementLink     *string    `json:"announcement_link,omitempty" db:"announcement_link"`
	SocialLinks          *string    `json:"social_links,omitempty" db:"social_links"`
	Source               string     `json:"source" db:"source"`
	AnnouncementUsername *string    `json:"announcement_username,omitempty" db:"announcement_username"`
	SourceURL            *string    `json:"source_url,omitempty" db:"source_url"`
	AnnouncedAt          *time.Time `json:"announced_at" db:"announced_at"`
	ProcessedAt          time.Time  `json:"processed_at" db:"processed_at"`
	AIProcessed          bool       `json:"ai_processed" db:"ai_processed"`
	AIProcessingAttempts int        `json:"ai_processing_attempts" db:"ai_processing_attempts"`
	Slug                 string     `json:"slug" db:"slug"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// State derives the enrichment state from the processed flag and attempt count.
func (f *Fundraise) State() EnrichmentState {
	switch {
	case f.AIProcessed:
		return EnrichmentStateProcessed
	case f.AIProcessingAttempts >= MaxEnrichmentAttempts:
		return EnrichmentStateExhausted
	default:
		return EnrichmentStateUnprocessed
	}
}

// NeedsEnrichment reports whether the record is still eligible for an
// enrichment attempt.
func (f *Fundraise) NeedsEnrichment() bool {
	return f.State() == EnrichmentStateUnprocessed
}

// PopulatedFieldCount is the flat tally of content fields carrying a value.
// Every field weighs the same; bookkeeping fields (IDs, timestamps, flags,
// slug, source) are not counted.
func (f *Fundraise) PopulatedFieldCount() int {
	count := 0
	for _, set := range []bool{
		f.ProjectName != "",
		f.AmountRaisedUSD != nil,
		nonEmpty(f.RoundType),
		nonEmpty(f.LeadInvestor),
		len(f.OtherInvestors) > 0,
		nonEmpty(f.Token),
		f.Description != "",
		nonEmpty(f.Category),
		len(f.Tags) > 0,
		nonEmpty(f.Website),
		nonEmpty(f.Valuation),
		nonEmpty(f.AnnouncementLink),
		nonEmpty(f.SocialLinks),
		f.AnnouncedAt != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

// ExtractionText rebuilds the extractor input for a retry from the stored
// description and curator notes, joined the way RawAnnouncement does it.
func (f *Fundraise) ExtractionText() string {
	if !nonEmpty(f.CuratorNotes) {
		return f.Description
	}
	return f.Description + curatorNotesSeparator + *f.CuratorNotes
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
