package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"dealdesk-backend/internal/importer/domain"

	"github.com/emersion/go-message/mail"
)

// MboxParser handles spooled email: single RFC822 messages from the Gmail
// connector and multi-message mbox archives from uploads. Header senders
// become contacts and the text body goes through the transcript heuristics.
type MboxParser struct {
	transcript *TranscriptParser
}

func NewMboxParser() *MboxParser {
	return &MboxParser{transcript: NewTranscriptParser()}
}

func (p *MboxParser) Name() string    { return "standardized_mbox" }
func (p *MboxParser) Version() string { return "2.0" }

func (p *MboxParser) Parse(content []byte) (*domain.ParseResult, error) {
	result := &domain.ParseResult{
		ParserName:    p.Name(),
		ParserVersion: p.Version(),
		SourceTags:    []string{"email", "heuristic"},
	}

	messages := splitMbox(content)
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages found")
	}

	emailSeen := make(map[string]bool)
	for i, raw := range messages {
		if err := p.parseMessage(raw, result, emailSeen); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("message %d: %v", i+1, err))
		}
	}
	return result, nil
}

func (p *MboxParser) parseMessage(raw []byte, result *domain.ParseResult, emailSeen map[string]bool) error {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	if from, err := mr.Header.AddressList("From"); err == nil {
		for _, addr := range from {
			key := strings.ToLower(addr.Address)
			if key == "" || emailSeen[key] {
				continue
			}
			emailSeen[key] = true
			name := addr.Name
			if name == "" {
				name = localPart(addr.Address)
			}
			result.Contacts = append(result.Contacts, domain.NormalizedContact{
				Name:  name,
				Email: addr.Address,
				Role:  "sender",
			})
		}
	}

	body, err := textBody(mr)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		result.Warnings = append(result.Warnings, "message has no text body")
		return nil
	}

	bodyResult, err := p.transcript.Parse(body)
	if err != nil {
		return err
	}
	for i := range bodyResult.Deals {
		bodyResult.Deals[i].Extraction.ParserName = p.Name()
		bodyResult.Deals[i].Extraction.ParserVersion = p.Version()
		bodyResult.Deals[i].Extraction.SourceTags = []string{"email", "heuristic"}
	}
	result.Vendors = append(result.Vendors, bodyResult.Vendors...)
	result.Deals = append(result.Deals, bodyResult.Deals...)
	for _, contact := range bodyResult.Contacts {
		if contact.Email != "" && emailSeen[strings.ToLower(contact.Email)] {
			continue
		}
		if contact.Email != "" {
			emailSeen[strings.ToLower(contact.Email)] = true
		}
		result.Contacts = append(result.Contacts, contact)
	}
	result.Warnings = append(result.Warnings, bodyResult.Warnings...)
	return nil
}

// textBody concatenates the inline text parts of a message.
func textBody(mr *mail.Reader) ([]byte, error) {
	var body bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		if header, ok := part.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := header.ContentType()
			if contentType == "" || strings.HasPrefix(contentType, "text/plain") {
				if _, err := body.ReadFrom(part.Body); err != nil {
					return nil, err
				}
				body.WriteByte('\n')
			}
		}
	}
	return body.Bytes(), nil
}

// splitMbox splits an mbox archive on "From " separator lines. A plain
// RFC822 message without separators comes back as a single entry.
func splitMbox(content []byte) [][]byte {
	if !bytes.HasPrefix(content, []byte("From ")) {
		if len(bytes.TrimSpace(content)) == 0 {
			return nil
		}
		return [][]byte{content}
	}

	var messages [][]byte
	var current bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "From ") {
			if current.Len() > 0 {
				messages = append(messages, append([]byte(nil), current.Bytes()...))
				current.Reset()
			}
			continue
		}
		// mbox escapes body lines starting with "From " as ">From ".
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		current.WriteString(line)
		current.WriteString("\r\n")
	}
	if current.Len() > 0 {
		messages = append(messages, append([]byte(nil), current.Bytes()...))
	}
	return messages
}
