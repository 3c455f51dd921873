package usecase

import (
	"context"

	"dealdesk-backend/internal/sync/domain"
)

// ItemRef identifies one candidate item from a connector search page.
// Full content is only fetched for refs that pass the ledger check.
type ItemRef struct {
	ExternalID string
}

// FetchedItem is the full content of one external item plus the metadata
// that goes into the spool sidecar and the source file row.
type FetchedItem struct {
	Content     []byte
	Ext         string
	FileType    string
	Description string
	// SidecarKey is the connector-specific key the summary is stored
	// under in the sidecar ("message" for Gmail, "file" for Drive).
	SidecarKey string
	Summary    interface{}
	// Provenance fields merged into SourceFile.Metadata.
	Provenance map[string]interface{}
}

// Connector is the uniform search/fetch contract over an external source.
type Connector interface {
	Name() string
	QueryName() string
	Search(ctx context.Context) ([]ItemRef, bool, error)
	Fetch(ctx context.Context, ref ItemRef) (*FetchedItem, error)
}

// ConnectorFactory builds a ready-to-call connector for a configuration,
// resolving credentials as part of construction.
type ConnectorFactory interface {
	ForConfig(ctx context.Context, cfg *domain.SyncConfiguration) (Connector, error)
}
