package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/cryptofundraises/tracker/internal/domain/entities"
	"github.com/cryptofundraises/tracker/pkg/utils"
	"github.com/rs/zerolog/log"
)

// CSV column order of the bulk export.
const (
	colProject = iota
	colRound
	colWebsite
	colDate
	colAmount
	colValuation
	colCategory
	colTags
	colLeadInvestors
	colOtherInvestors
	colDescription
	colAnnouncementLink
	colSocialLinks
	csvColumnCount
)

// CSVHeader is the header row of the bulk export.
var CSVHeader = []string{
	"Project", "Round", "Website", "Date", "Amount", "Valuation", "Category", "Tags",
	"Lead_Investors", "Other_Investors", "Description", "Announcement_Link", "Social_Links",
}

// CSVSource reads a bulk export from a local path or a URL.
type CSVSource struct {
	location string
	client   *http.Client
}

// NewCSVSource creates a CSV export source
func NewCSVSource(location string, client *http.Client) *CSVSource {
	return &CSVSource{location: location, client: client}
}

func (s *CSVSource) Name() string { return entities.SourceCSV }

// Fetch loads and parses the export.
func (s *CSVSource) Fetch(ctx context.Context) ([]entities.RawAnnouncement, error) {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(s.location, "http://") || strings.HasPrefix(s.location, "https://") {
		body, err = fetchBody(ctx, s.client, "csv export", s.location, "text/csv")
	} else {
		body, err = os.ReadFile(s.location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv %s: %w", s.location, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("csv file is empty")
	}

	return ParseCSV(bytes.NewReader(body))
}

// ParseCSV parses a 13-column export, skipping the header row. Short rows
// are padded and blank rows dropped.
func ParseCSV(r io.Reader) ([]entities.RawAnnouncement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []entities.RawAnnouncement{}, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	out := []entities.RawAnnouncement{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		raw, ok := rowToRaw(record)
		if !ok {
			log.Debug().Int("line", line).Msg("skipping blank csv row")
			continue
		}
		out = append(out, raw)
	}

	return out, nil
}

func rowToRaw(record []string) (entities.RawAnnouncement, bool) {
	cols := make([]string, csvColumnCount)
	blank := true
	for i := 0; i < csvColumnCount && i < len(record); i++ {
		cols[i] = strings.TrimSpace(record[i])
		if cols[i] != "" {
			blank = false
		}
	}
	if blank {
		return entities.RawAnnouncement{}, false
	}

	content := cols[colDescription]
	if content == "" {
		content = cols[colProject]
	}

	return entities.RawAnnouncement{
		Content:          content,
		Source:           entities.SourceCSV,
		SourceURL:        cols[colAnnouncementLink],
		Project:          cols[colProject],
		Round:            cols[colRound],
		Website:          cols[colWebsite],
		Date:             cols[colDate],
		Amount:           cols[colAmount],
		Valuation:        cols[colValuation],
		Category:         cols[colCategory],
		Tags:             cols[colTags],
		LeadInvestors:    cols[colLeadInvestors],
		OtherInvestors:   cols[colOtherInvestors],
		Description:      cols[colDescription],
		AnnouncementLink: cols[colAnnouncementLink],
		SocialLinks:      cols[colSocialLinks],
	}, true
}

// WriteCSV writes records in the bulk export layout so ParseCSV can read
// them back.
func WriteCSV(w io.Writer, records []*entities.Fundraise) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	row := make([]string, csvColumnCount)
	for _, f := range records {
		if f == nil {
			continue
		}
		row[colProject] = f.ProjectName
		row[colRound] = deref(f.RoundType)
		row[colWebsite] = deref(f.Website)
		row[colDate] = ""
		if f.AnnouncedAt != nil {
			row[colDate] = f.AnnouncedAt.UTC().Format("2006-01-02")
		}
		row[colAmount] = ""
		if f.AmountRaisedUSD != nil {
			row[colAmount] = utils.FormatAmount(*f.AmountRaisedUSD)
		}
		row[colValuation] = deref(f.Valuation)
		row[colCategory] = deref(f.Category)
		row[colTags] = strings.Join(f.Tags, ", ")
		row[colLeadInvestors] = deref(f.LeadInvestor)
		row[colOtherInvestors] = strings.Join(f.OtherInvestors, ", ")
		row[colDescription] = f.Description
		row[colAnnouncementLink] = deref(f.AnnouncementLink)
		row[colSocialLinks] = deref(f.SocialLinks)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", f.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
