package entities

import "time"

// Known ingestion sources
const (
	SourceCurated  = "curated"
	SourceTelegram = "telegram"
	SourceCSV      = "csv"
)

// RawAnnouncement is one unprocessed item as fetched by an ingestion source.
// Hint fields carry whatever structure the source already had; all of them
// are optional.
type RawAnnouncement struct {
	ExternalID   string     `json:"external_id,omitempty"`
	Content      string     `json:"content"`
	CuratorNotes string     `json:"curator_notes,omitempty"`
	Source       string     `json:"source"`
	Username     string     `json:"username,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`

	Project          string `json:"project,omitempty"`
	Round            string `json:"round,omitempty"`
	Website          string `json:"website,omitempty"`
	Date             string `json:"date,omitempty"`
	Amount           string `json:"amount,omitempty"`
	Valuation        string `json:"valuation,omitempty"`
	Category         string `json:"category,omitempty"`
	Tags             string `json:"tags,omitempty"`
	LeadInvestors    string `json:"lead_investors,omitempty"`
	OtherInvestors   string `json:"other_investors,omitempty"`
	Description      string `json:"description,omitempty"`
	AnnouncementLink string `json:"announcement_link,omitempty"`
	SocialLinks      string `json:"social_links,omitempty"`
}

const curatorNotesSeparator = "\nCurator Notes: "

// ExtractionText is the text blob handed to the field extractor.
func (r *RawAnnouncement) ExtractionText() string {
	if r.CuratorNotes == "" {
		return r.Content
	}
	return r.Content + curatorNotesSeparator + r.CuratorNotes
}
