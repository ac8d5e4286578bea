// Package googledrive reads photos from a publicly shared Google Drive folder
// using an API key.
package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/saturnino-fabrica-de-software/facefind/internal/imageio"
	"github.com/saturnino-fabrica-de-software/facefind/internal/source"
)

const (
	DefaultMaxFiles = 50
	pageSize        = 100
)

var folderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)

type Config struct {
	APIKey   string
	MaxFiles int
	// Endpoint overrides the Drive API base URL.
	Endpoint string
}

type Client struct {
	svc      *drive.Service
	maxFiles int
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google drive: API key is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	maxFiles := cfg.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Client{svc: svc, maxFiles: maxFiles}, nil
}

// Folder returns a source for the folder a share link points at.
func (c *Client) Folder(link string) (*Folder, error) {
	id, err := ParseFolderLink(link)
	if err != nil {
		return nil, err
	}
	return &Folder{client: c, id: id}, nil
}

// ParseFolderLink extracts the folder id from links such as
// https://drive.google.com/drive/folders/<id>?usp=sharing or
// https://drive.google.com/open?id=<id>. A bare id is accepted as well.
func ParseFolderLink(link string) (string, error) {
	link = strings.TrimSpace(link)
	if folderIDPattern.MatchString(link) {
		return link, nil
	}

	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", source.ErrInvalidLink, link)
	}

	var id string
	if _, rest, ok := strings.Cut(u.Path, "/folders/"); ok {
		id, _, _ = strings.Cut(rest, "/")
	} else {
		id = u.Query().Get("id")
	}

	if !folderIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: no folder id in %q", source.ErrInvalidLink, link)
	}
	return id, nil
}

// Folder implements source.Source for one Drive folder.
type Folder struct {
	client *Client
	id     string
}

func (f *Folder) ID() string {
	return f.id
}

var errEnough = errors.New("enough files")

// List returns up to MaxFiles allow-listed images directly inside the folder.
func (f *Folder) List(ctx context.Context) ([]source.RemoteFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", f.id)
	call := f.client.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType, size)").
		PageSize(pageSize).
		OrderBy("name").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	var files []source.RemoteFile
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, file := range page.Files {
			if !imageio.IsCandidate(file.Name) {
				continue
			}
			files = append(files, source.RemoteFile{ID: file.Id, Name: file.Name, Size: file.Size})
			if len(files) >= f.client.maxFiles {
				return errEnough
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return nil, fmt.Errorf("list folder %s: %w", f.id, classify(err))
	}
	return files, nil
}

func (f *Folder) Open(ctx context.Context, file source.RemoteFile) (io.ReadCloser, error) {
	resp, err := f.client.svc.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", file.ID, classify(err))
	}
	return resp.Body, nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	switch gerr.Code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", source.ErrFolderNotFound, err)
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", source.ErrAccessDenied, err)
	}
	return err
}

var _ source.Source = (*Folder)(nil)
