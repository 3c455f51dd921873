package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"dealdesk-backend/pkg/googleauth"
	"dealdesk-backend/pkg/ratelimit"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	docMimeType    = "application/vnd.google-apps.document"
	sheetMimeType  = "application/vnd.google-apps.spreadsheet"

	fileFields = "nextPageToken, files(id, name, mimeType, size, modifiedTime, owners(emailAddress), webViewLink)"
)

// FileSummary is the metadata recorded in spool sidecars.
type FileSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	Size         int64    `json:"size"`
	ModifiedTime string   `json:"modifiedTime"`
	Owners       []string `json:"owners,omitempty"`
	WebViewLink  string   `json:"webViewLink,omitempty"`
}

// SearchFilter selects files within a folder, optionally recursing into
// subfolders.
type SearchFilter struct {
	FolderID          string
	MimeType          string
	IncludeSubfolders bool
}

// Client wraps the Drive API behind the connector search/fetch contract.
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

func (c *Client) service(ctx context.Context, creds googleauth.Credentials) (*drive.Service, error) {
	client := c.factory.HTTPClient(ctx, creds)
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return srv, nil
}

// SearchFiles lists files under the filter's folder. Subfolder traversal is
// breadth-first with a visited set so shortcut cycles cannot loop, and the
// maxResults cutoff applies across all pages and folders.
func (c *Client) SearchFiles(ctx context.Context, creds googleauth.Credentials, filter SearchFilter, maxResults int64) ([]FileSummary, bool, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, false, err
	}

	files := make([]FileSummary, 0)
	queue := []string{filter.FolderID}
	visited := map[string]bool{filter.FolderID: true}
	truncated := false

	for len(queue) > 0 && !truncated {
		folderID := queue[0]
		queue = queue[1:]

		pageToken := ""
		for {
			var resp *drive.FileList
			err := c.limiter.Execute(ctx, func() error {
				return ratelimit.WithRetry(ctx, c.retry, func() error {
					call := srv.Files.List().
						Q(buildFolderQuery(folderID, filter.MimeType)).
						Fields(fileFields).
						PageSize(100)
					if pageToken != "" {
						call = call.PageToken(pageToken)
					}
					var apiErr error
					resp, apiErr = call.Context(ctx).Do()
					return apiErr
				})
			})
			if err != nil {
				return nil, false, fmt.Errorf("unable to list files in folder %s: %w", folderID, err)
			}

			for _, f := range resp.Files {
				if f.MimeType == folderMimeType {
					if filter.IncludeSubfolders && !visited[f.Id] {
						visited[f.Id] = true
						queue = append(queue, f.Id)
					}
					continue
				}
				if int64(len(files)) >= maxResults {
					truncated = true
					break
				}
				files = append(files, toSummary(f))
			}

			pageToken = resp.NextPageToken
			if pageToken == "" || truncated {
				break
			}
		}
	}

	return files, truncated, nil
}

// FetchFileContent downloads one file. Google Docs export as plain text,
// Sheets as CSV, everything else downloads as-is with the extension
// inferred from the mime type.
func (c *Client) FetchFileContent(ctx context.Context, creds googleauth.Credentials, file FileSummary) ([]byte, string, error) {
	srv, err := c.service(ctx, creds)
	if err != nil {
		return nil, "", err
	}

	var content []byte
	var ext string
	err = c.limiter.Execute(ctx, func() error {
		return ratelimit.WithRetry(ctx, c.retry, func() error {
			switch file.MimeType {
			case docMimeType:
				ext = "txt"
				resp, apiErr := srv.Files.Export(file.ID, "text/plain").Context(ctx).Download()
				if apiErr != nil {
					return apiErr
				}
				defer resp.Body.Close()
				var readErr error
				content, readErr = io.ReadAll(resp.Body)
				return readErr
			case sheetMimeType:
				ext = "csv"
				resp, apiErr := srv.Files.Export(file.ID, "text/csv").Context(ctx).Download()
				if apiErr != nil {
					return apiErr
				}
				defer resp.Body.Close()
				var readErr error
				content, readErr = io.ReadAll(resp.Body)
				return readErr
			default:
				ext = ExtensionForMime(file.MimeType)
				resp, apiErr := srv.Files.Get(file.ID).Context(ctx).Download()
				if apiErr != nil {
					return apiErr
				}
				defer resp.Body.Close()
				var readErr error
				content, readErr = io.ReadAll(resp.Body)
				return readErr
			}
		})
	})
	if err != nil {
		return nil, "", fmt.Errorf("unable to fetch file %s: %w", file.ID, err)
	}

	return content, ext, nil
}

// ExtensionForMime maps download mime types onto spool file extensions.
func ExtensionForMime(mimeType string) string {
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case mimeType == "text/csv":
		return "csv"
	case strings.HasPrefix(mimeType, "text/"):
		return "txt"
	default:
		return "txt"
	}
}

func buildFolderQuery(folderID, mimeType string) string {
	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	if mimeType != "" {
		q += fmt.Sprintf(" and (mimeType = '%s' or mimeType = '%s')", mimeType, folderMimeType)
	}
	return q
}

func toSummary(f *drive.File) FileSummary {
	owners := make([]string, 0, len(f.Owners))
	for _, o := range f.Owners {
		if o != nil && o.EmailAddress != "" {
			owners = append(owners, o.EmailAddress)
		}
	}
	return FileSummary{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		ModifiedTime: f.ModifiedTime,
		Owners:       owners,
		WebViewLink:  f.WebViewLink,
	}
}
