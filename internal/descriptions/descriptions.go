// Package descriptions loads item descriptions from a local cache, a database, or the wiki.
package descriptions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/andresmejia3/itemwatch/internal/resilience"
	"github.com/andresmejia3/itemwatch/internal/types"
)

// DefaultSourceURL is the wiki page the descriptions are scraped from.
const DefaultSourceURL = "https://platinumgod.co.uk/rebirth"

// DefaultCachePath is where fetched descriptions are stored between runs.
const DefaultCachePath = "descriptions.json"

// Set is an id-indexed description collection. It is read-only after construction.
type Set struct {
	byID  map[uint32]types.Description
	items []types.Description
}

// NewSet indexes items by id. A later item with the same id replaces an earlier one.
func NewSet(items []types.Description) *Set {
	s := &Set{byID: make(map[uint32]types.Description, len(items))}
	pos := make(map[uint32]int, len(items))
	for _, d := range items {
		if i, dup := pos[d.ID]; dup {
			s.items[i] = d
		} else {
			pos[d.ID] = len(s.items)
			s.items = append(s.items, d)
		}
		s.byID[d.ID] = d
	}
	return s
}

// Lookup returns the description for a unique id.
func (s *Set) Lookup(id uint32) (types.Description, bool) {
	d, ok := s.byID[id]
	return d, ok
}

// Len returns the number of distinct ids.
func (s *Set) Len() int {
	return len(s.byID)
}

// Items returns the descriptions in source order.
func (s *Set) Items() []types.Description {
	out := make([]types.Description, len(s.items))
	copy(out, s.items)
	return out
}

// ReadCache loads a description cache file.
func ReadCache(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc types.DescriptionSet
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return NewSet(doc.Items), nil
}

// WriteCache stores the set at path, replacing any existing file.
func WriteCache(path string, s *Set) error {
	data, err := json.Marshal(types.DescriptionSet{Items: s.Items()})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Fetch downloads and parses the description page, retrying transient failures.
func Fetch(ctx context.Context, client *http.Client, url string) ([]types.Description, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	var items []types.Description
	err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "itemwatch")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &resilience.StatusError{Code: resp.StatusCode, URL: url}
		}
		items, err = Parse(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch descriptions from %s: %w", url, err)
	}
	return items, nil
}

// Repository persists descriptions outside the cache file.
type Repository interface {
	LoadDescriptions(ctx context.Context) ([]types.Description, error)
	SaveDescriptions(ctx context.Context, items []types.Description) error
}

// Loader resolves the description set from the repository or cache file,
// falling back to the remote page and writing the result back.
type Loader struct {
	CachePath string
	SourceURL string
	Client    *http.Client
	// Repo replaces the cache file when set.
	Repo Repository
}

// Load returns the description set, fetching it on a cache miss.
func (l *Loader) Load(ctx context.Context) (*Set, error) {
	if l.Repo != nil {
		items, err := l.Repo.LoadDescriptions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load descriptions from database: %w", err)
		}
		if len(items) > 0 {
			return NewSet(items), nil
		}
		return l.Refresh(ctx)
	}

	s, err := ReadCache(l.cachePath())
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	slog.Info("description cache missing, fetching", "path", l.cachePath(), "url", l.sourceURL())
	return l.Refresh(ctx)
}

// Refresh fetches the remote page unconditionally and stores the result.
func (l *Loader) Refresh(ctx context.Context) (*Set, error) {
	items, err := Fetch(ctx, l.Client, l.sourceURL())
	if err != nil {
		return nil, err
	}
	s := NewSet(items)

	if l.Repo != nil {
		if err := l.Repo.SaveDescriptions(ctx, s.Items()); err != nil {
			return nil, fmt.Errorf("failed to save descriptions to database: %w", err)
		}
		return s, nil
	}
	if err := WriteCache(l.cachePath(), s); err != nil {
		return nil, fmt.Errorf("failed to write description cache: %w", err)
	}
	slog.Info("saved descriptions", "path", l.cachePath(), "count", s.Len())
	return s, nil
}

func (l *Loader) cachePath() string {
	if l.CachePath == "" {
		return DefaultCachePath
	}
	return l.CachePath
}

func (l *Loader) sourceURL() string {
	if l.SourceURL == "" {
		return DefaultSourceURL
	}
	return l.SourceURL
}
