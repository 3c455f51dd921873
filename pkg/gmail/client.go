package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"dealdesk-backend/pkg/googleauth"
	"dealdesk-backend/pkg/ratelimit"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// summaryHeaders is the fixed metadata set requested for every message
// summary fetch.
var summaryHeaders = []string{"Subject", "From", "To", "Date", "X-GM-THRID", "Message-ID", "X-Gmail-Labels"}

// MessageRef identifies one candidate message from a search page.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// MessageSummary is the metadata recorded in spool sidecars.
type MessageSummary struct {
	ID           string   `json:"id"`
	ThreadID     string   `json:"threadId"`
	Subject      string   `json:"subject"`
	From         string   `json:"from"`
	To           string   `json:"to"`
	Date         string   `json:"date"`
	MessageID    string   `json:"messageId"`
	Labels       []string `json:"labels,omitempty"`
	InternalDate int64    `json:"internalDate"`
	SizeEstimate int64    `json:"sizeEstimate"`
}

// SearchFilter is turned into a Gmail query string.
type SearchFilter struct {
	Query    string
	LabelIDs []string
	After    *time.Time
	Before   *time.Time
}

// BuildQuery renders the filter with Gmail's after:/before: date tokens.
func (f SearchFilter) BuildQuery() string {
	parts := []string{}
	if f.Query != "" {
		parts = append(parts, f.Query)
	}
	for _, label := range f.LabelIDs {
		parts = append(parts, "label:"+label)
	}
	if f.After != nil {
		parts = append(parts, "after:"+f.After.Format("2006/01/02"))
	}
	if f.Before != nil {
		parts = append(parts, "before:"+f.Before.Format("2006/01/02"))
	}
	return strings.Join(parts, " ")
}

// Client wraps the Gmail API behind the connector search/fetch contract.
// Every API call goes through the rate limiter and retry wrapper.
type Client struct {
	factory *googleauth.ClientFactory
	limiter *ratelimit.RateLimiter
	retry   *ratelimit.RetryOptions
	log     *logrus.Entry
}

func NewClient(factory *googleauth.ClientFactory, limiter *ratelimit.RateLimiter, log *logrus.Entry) *Client {
	return &Client{
		factory: factory,
		limiter: limiter,
		retry:   &ratelimit.RetryOptions{Logger: log},
		log:     log,
	}
}

func (c *Client) service(ctx context.Context, creds googleauth.Credentials) (*gmail.Service, error) {
	client := c.factory.HTTPClient(ctx, creds)
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// SearchMessages pages through the query results up to maxResults.
func (c *Client) SearchMessages(ctx context.Context, creds googleauth.Credentials, filter SearchFilter, maxResults int64) ([]MessageRef, bool, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, false, err
	}

	query := filter.BuildQuery()
	refs := make([]MessageRef, 0)
	pageToken := ""
	truncated := false

	for {
		remaining := maxResults - int64(len(refs))
		if remaining <= 0 {
			truncated = pageToken != ""
			break
		}

		var resp *gmail.ListMessagesResponse
		err := c.limiter.Execute(ctx, func() error {
			return ratelimit.WithRetry(ctx, c.retry, func() error {
				call := srv.Users.Messages.List("me").MaxResults(remaining)
				if query != "" {
					call = call.Q(query)
				}
				if pageToken != "" {
					call = call.PageToken(pageToken)
				}
				var apiErr error
				resp, apiErr = call.Context(ctx).Do()
				return apiErr
			})
		})
		if err != nil {
			return nil, false, fmt.Errorf("unable to search messages: %w", err)
		}

		for _, msg := range resp.Messages {
			refs = append(refs, MessageRef{ID: msg.Id, ThreadID: msg.ThreadId})
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return refs, truncated, nil
}

// GetMessageSummary fetches the fixed metadata header set for one message.
func (c *Client) GetMessageSummary(ctx context.Context, creds googleauth.Credentials, id string) (*MessageSummary, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = c.limiter.Execute(ctx, func() error {
		return ratelimit.WithRetry(ctx, c.retry, func() error {
			var apiErr error
			msg, apiErr = srv.Users.Messages.Get("me", id).
				Format("metadata").
				MetadataHeaders(summaryHeaders...).
				Context(ctx).Do()
			return apiErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to fetch message summary: %w", err)
	}

	summary := &MessageSummary{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		InternalDate: msg.InternalDate,
		SizeEstimate: msg.SizeEstimate,
	}
	if msg.Payload != nil {
		summary.Subject = getHeader(msg.Payload.Headers, "Subject")
		summary.From = getHeader(msg.Payload.Headers, "From")
		summary.To = getHeader(msg.Payload.Headers, "To")
		summary.Date = getHeader(msg.Payload.Headers, "Date")
		summary.MessageID = getHeader(msg.Payload.Headers, "Message-ID")
		summary.Labels = splitLabels(getHeader(msg.Payload.Headers, "X-Gmail-Labels"))
	}
	return summary, nil
}

// FetchMessageRaw returns the full RFC822 message bytes.
func (c *Client) FetchMessageRaw(ctx context.Context, creds googleauth.Credentials, id string) ([]byte, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	err = c.limiter.Execute(ctx, func() error {
		return ratelimit.WithRetry(ctx, c.retry, func() error {
			var apiErr error
			msg, apiErr = srv.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
			return apiErr
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to fetch message: %w", err)
	}

	raw, err := base64.URLEncoding.DecodeString(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("unable to decode message body: %w", err)
	}
	return raw, nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func splitLabels(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			labels = append(labels, trimmed)
		}
	}
	return labels
}
