package parser

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"dealdesk-backend/internal/importer/domain"

	"github.com/shopspring/decimal"
)

// TranscriptParser extracts entities from free-form text: meeting notes,
// call transcripts, exported documents. Heuristic, so confidence is low
// and everything it finds is tagged for review.
type TranscriptParser struct{}

func NewTranscriptParser() *TranscriptParser { return &TranscriptParser{} }

func (p *TranscriptParser) Name() string    { return "standardized_transcript" }
func (p *TranscriptParser) Version() string { return "2.1" }

var (
	vendorLineRe  = regexp.MustCompile(`(?i)^\s*(?:vendor|partner|supplier)\s*[:\-]\s*(.+)$`)
	dealLineRe    = regexp.MustCompile(`(?i)^\s*(?:deal|opportunity|project)\s*[:\-]\s*(.+)$`)
	amountRe      = regexp.MustCompile(`(?i)(?:\$|usd\s*)\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(k|m)?`)
	emailRe       = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	contactLineRe = regexp.MustCompile(`(?i)^\s*(?:contact|attendee|rep)\s*[:\-]\s*([^,<(]+)`)
)

func (p *TranscriptParser) Parse(content []byte) (*domain.ParseResult, error) {
	result := &domain.ParseResult{
		ParserName:    p.Name(),
		ParserVersion: p.Version(),
		SourceTags:    []string{"transcript", "heuristic"},
	}

	var currentVendor string
	vendorSeen := make(map[string]bool)
	emailSeen := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := vendorLineRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			currentVendor = name
			if key := strings.ToLower(name); name != "" && !vendorSeen[key] {
				vendorSeen[key] = true
				result.Vendors = append(result.Vendors, domain.NormalizedVendor{
					Name:           name,
					NormalizedName: key,
				})
			}
			continue
		}

		if m := dealLineRe.FindStringSubmatch(line); m != nil {
			dealText := strings.TrimSpace(m[1])
			value, _ := parseMoney(firstAmount(dealText))
			result.Deals = append(result.Deals, domain.NormalizedDeal{
				DealName:   stripAmount(dealText),
				VendorName: currentVendor,
				Value:      value,
				Currency:   "USD",
				Extraction: domain.ExtractionMeta{
					ParserName:    p.Name(),
					ParserVersion: p.Version(),
					SourceTags:    []string{"transcript", "heuristic"},
					Confidence:    0.5,
				},
			})
			continue
		}

		if m := contactLineRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			contact := domain.NormalizedContact{VendorName: currentVendor}
			if email := emailRe.FindString(line); email != "" {
				contact.Email = email
				emailSeen[strings.ToLower(email)] = true
				name = strings.TrimSpace(strings.Replace(name, email, "", 1))
			}
			if name == "" && contact.Email != "" {
				name = localPart(contact.Email)
			}
			contact.Name = name
			result.Contacts = append(result.Contacts, contact)
			continue
		}

		// Bare email addresses become anonymous contacts.
		if email := emailRe.FindString(line); email != "" && !emailSeen[strings.ToLower(email)] {
			emailSeen[strings.ToLower(email)] = true
			result.Contacts = append(result.Contacts, domain.NormalizedContact{
				Name:       localPart(email),
				VendorName: currentVendor,
				Email:      email,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(result.Vendors) == 0 && len(result.Deals) == 0 && len(result.Contacts) == 0 {
		result.Warnings = append(result.Warnings, "no entities recognized in transcript")
	}
	return result, nil
}

// firstAmount returns the first money-looking token, expanded for k/m
// suffixes ("$120k" -> "120000").
func firstAmount(s string) string {
	m := amountRe.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return ""
	}
	switch strings.ToLower(m[2]) {
	case "k":
		amount = amount.Mul(decimal.NewFromInt(1000))
	case "m":
		amount = amount.Mul(decimal.NewFromInt(1000000))
	}
	return amount.String()
}

func stripAmount(s string) string {
	cleaned := amountRe.ReplaceAllString(s, "")
	cleaned = strings.Trim(cleaned, " \t-,;")
	if cleaned == "" {
		return s
	}
	return cleaned
}

func localPart(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}
