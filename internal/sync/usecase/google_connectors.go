package usecase

import (
	"context"
	"fmt"
	"strings"

	"dealdesk-backend/internal/oauth/domain"
	syncdomain "dealdesk-backend/internal/sync/domain"
	"dealdesk-backend/pkg/drive"
	"dealdesk-backend/pkg/gmail"
	"dealdesk-backend/pkg/googleauth"
	"dealdesk-backend/pkg/spool"
)

// CredentialsResolver hands out ready-to-use connector credentials for a
// stored token id. The OAuth usecase implements it.
type CredentialsResolver interface {
	Resolve(ctx context.Context, tokenID string) (googleauth.Credentials, error)
}

const (
	gmailReadScope = "https://www.googleapis.com/auth/gmail.readonly"
	driveReadScope = "https://www.googleapis.com/auth/drive.readonly"
)

// googleConnectorFactory builds Gmail/Drive connectors from a sync
// configuration. Credentials come from the linked user token, or from the
// shared service account when the configuration names an impersonation
// target instead.
type googleConnectorFactory struct {
	resolver CredentialsResolver
	gmail    *gmail.Client
	drive    *drive.Client
	pageSize int64

	saEnabled bool
	saCreds   func(ctx context.Context, subject, scope string) (googleauth.Credentials, error)
}

func NewGoogleConnectorFactory(resolver CredentialsResolver, gmailClient *gmail.Client, driveClient *drive.Client, saCredentials []byte, pageSize int) ConnectorFactory {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &googleConnectorFactory{
		resolver:  resolver,
		gmail:     gmailClient,
		drive:     driveClient,
		pageSize:  int64(pageSize),
		saEnabled: len(saCredentials) > 0,
		saCreds: func(ctx context.Context, subject, scope string) (googleauth.Credentials, error) {
			return googleauth.ServiceAccountCredentials(ctx, saCredentials, subject, scope)
		},
	}
}

func (f *googleConnectorFactory) credentials(ctx context.Context, cfg *syncdomain.SyncConfiguration) (googleauth.Credentials, error) {
	if cfg.TokenID != "" {
		return f.resolver.Resolve(ctx, cfg.TokenID)
	}
	if cfg.ImpersonateEmail == "" {
		return googleauth.Credentials{}, fmt.Errorf("sync configuration %s has neither a token nor an impersonation target", cfg.ID)
	}
	if !f.saEnabled {
		return googleauth.Credentials{}, fmt.Errorf("service account credentials are not configured")
	}

	scope := gmailReadScope
	if cfg.Service == domain.ServiceDrive {
		scope = driveReadScope
	}
	return f.saCreds(ctx, cfg.ImpersonateEmail, scope)
}

func (f *googleConnectorFactory) ForConfig(ctx context.Context, cfg *syncdomain.SyncConfiguration) (Connector, error) {
	creds, err := f.credentials(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queryName := queryNameFor(cfg)
	switch cfg.Service {
	case domain.ServiceGmail:
		return &gmailConnector{client: f.gmail, creds: creds, cfg: cfg, queryName: queryName, pageSize: f.pageSize}, nil
	case domain.ServiceDrive:
		if cfg.FolderID == "" {
			return nil, fmt.Errorf("drive sync configuration %s has no folder id", cfg.ID)
		}
		return &driveConnector{client: f.drive, creds: creds, cfg: cfg, queryName: queryName, pageSize: f.pageSize}, nil
	default:
		return nil, fmt.Errorf("unsupported sync service: %s", cfg.Service)
	}
}

func queryNameFor(cfg *syncdomain.SyncConfiguration) string {
	name := spool.Sanitize(strings.ToLower(cfg.Name))
	if name == "" {
		name = cfg.ID
	}
	return name
}

type gmailConnector struct {
	client    *gmail.Client
	creds     googleauth.Credentials
	cfg       *syncdomain.SyncConfiguration
	queryName string
	pageSize  int64
}

func (c *gmailConnector) Name() string      { return domain.ServiceGmail }
func (c *gmailConnector) QueryName() string { return c.queryName }

func (c *gmailConnector) Search(ctx context.Context) ([]ItemRef, bool, error) {
	filter := gmail.SearchFilter{
		Query:  c.cfg.Query,
		After:  c.cfg.DateAfter,
		Before: c.cfg.DateBefore,
	}
	if c.cfg.LabelIDs != "" {
		filter.LabelIDs = splitCSV(c.cfg.LabelIDs)
	}

	refs, truncated, err := c.client.SearchMessages(ctx, c.creds, filter, c.pageSize)
	if err != nil {
		return nil, false, err
	}

	items := make([]ItemRef, 0, len(refs))
	for _, ref := range refs {
		items = append(items, ItemRef{ExternalID: ref.ID})
	}
	return items, truncated, nil
}

func (c *gmailConnector) Fetch(ctx context.Context, ref ItemRef) (*FetchedItem, error) {
	summary, err := c.client.GetMessageSummary(ctx, c.creds, ref.ExternalID)
	if err != nil {
		return nil, err
	}
	raw, err := c.client.FetchMessageRaw(ctx, c.creds, ref.ExternalID)
	if err != nil {
		return nil, err
	}

	return &FetchedItem{
		Content:    raw,
		Ext:        "eml",
		FileType:   "mbox",
		SidecarKey: "message",
		Summary:    summary,
		Provenance: map[string]interface{}{
			"gmail_message_id": summary.ID,
			"gmail_thread_id":  summary.ThreadID,
			"subject":          summary.Subject,
			"from":             summary.From,
			"date":             summary.Date,
		},
	}, nil
}

type driveConnector struct {
	client    *drive.Client
	creds     googleauth.Credentials
	cfg       *syncdomain.SyncConfiguration
	queryName string
	pageSize  int64

	// summaries carries search results over to Fetch, keyed by file id.
	summaries map[string]drive.FileSummary
}

func (c *driveConnector) Name() string      { return domain.ServiceDrive }
func (c *driveConnector) QueryName() string { return c.queryName }

func (c *driveConnector) Search(ctx context.Context) ([]ItemRef, bool, error) {
	filter := drive.SearchFilter{
		FolderID:          c.cfg.FolderID,
		MimeType:          c.cfg.MimeType,
		IncludeSubfolders: c.cfg.IncludeSubfolders,
	}

	files, truncated, err := c.client.SearchFiles(ctx, c.creds, filter, c.pageSize)
	if err != nil {
		return nil, false, err
	}

	c.summaries = make(map[string]drive.FileSummary, len(files))
	items := make([]ItemRef, 0, len(files))
	for _, f := range files {
		c.summaries[f.ID] = f
		items = append(items, ItemRef{ExternalID: f.ID})
	}
	return items, truncated, nil
}

func (c *driveConnector) Fetch(ctx context.Context, ref ItemRef) (*FetchedItem, error) {
	summary, ok := c.summaries[ref.ExternalID]
	if !ok {
		return nil, fmt.Errorf("file %s was not returned by the search", ref.ExternalID)
	}

	content, ext, err := c.client.FetchFileContent(ctx, c.creds, summary)
	if err != nil {
		return nil, err
	}

	return &FetchedItem{
		Content:     content,
		Ext:         ext,
		FileType:    ext,
		Description: trimExtension(summary.Name),
		SidecarKey:  "file",
		Summary:     summary,
		Provenance: map[string]interface{}{
			"drive_file_id": summary.ID,
			"original_name": summary.Name,
			"mime_type":     summary.MimeType,
			"owners":        summary.Owners,
		},
	}, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func trimExtension(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}
