// Package archive moves submissions to long term storage and finds files
// related to an archived one.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

// VectorService is the service whose results carry similarity vectors.
const VectorService = "APIVector"

// AccessChecker decides whether a user classification may read a document.
type AccessChecker interface {
	IsAccessible(user, doc string) bool
}

// Stores are the collections the archive works on.
type Stores struct {
	Submissions *datastore.Collection[domain.Submission]
	Archive     *datastore.Collection[domain.Submission]
	Files       *datastore.Collection[domain.File]
	Results     *datastore.Collection[domain.Result]
}

// Manager implements the archive operations.
type Manager struct {
	stores  Stores
	access  AccessChecker
	enabled bool
	log     logger.Logger
	now     func() time.Time
}

// NewManager creates an archive manager. When enabled is false every
// archive request is refused.
func NewManager(stores Stores, access AccessChecker, enabled bool, log logger.Logger) *Manager {
	return &Manager{
		stores:  stores,
		access:  access,
		enabled: enabled,
		log:     log.Named("archive"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Action describes what an archive request did.
type Action struct {
	Success bool    `json:"success"`
	Action  string  `json:"action"`
	SID     *string `json:"sid"`
}

// ArchiveSubmission copies a submission to the archive and marks the hot
// copy as archived, or removes it when deleteAfter is set.
func (m *Manager) ArchiveSubmission(ctx context.Context, u *auth.User, sid string, deleteAfter bool) (*Action, error) {
	if !m.enabled {
		return nil, apperr.Errorf(apperr.ErrForbidden, "Archiving is disabled on the server.")
	}

	sub, err := m.stores.Submissions.Get(ctx, sid)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, apperr.Errorf(apperr.ErrNotFound, "The submission '%s' was not found in the system", sid)
	}
	if err != nil {
		return nil, err
	}
	if !m.access.IsAccessible(u.Classification, sub.Classification) {
		return nil, apperr.Errorf(apperr.ErrForbidden, "The submission '%s' is not accessible by this user", sid)
	}
	if sub.Archived {
		return nil, apperr.Errorf(apperr.ErrSubmission, "Submission %s is already archived", sid)
	}

	now := m.now()
	sub.Archived = true
	sub.ArchiveTS = &now
	if err := m.stores.Archive.Save(ctx, sid, sub); err != nil {
		return nil, fmt.Errorf("archive submission %s: %w", sid, err)
	}

	if deleteAfter {
		if _, err := m.stores.Submissions.Delete(ctx, sid); err != nil {
			return nil, fmt.Errorf("remove archived submission %s: %w", sid, err)
		}
	} else if err := m.stores.Submissions.Save(ctx, sid, sub); err != nil {
		return nil, fmt.Errorf("mark submission %s archived: %w", sid, err)
	}

	m.log.Info("submission archived",
		logger.String("sid", sid),
		logger.String("user", u.Username),
		logger.Bool("delete_after", deleteAfter))
	return &Action{Success: true, Action: "archive"}, nil
}

// Params page the related file searches.
type Params struct {
	Offset int    `json:"offset"`
	Rows   int    `json:"rows"`
	Sort   string `json:"sort"`
}

// DefaultParams are used for any value the caller leaves unset.
func DefaultParams() Params {
	return Params{Offset: 0, Rows: 10, Sort: "seen.last desc"}
}

// Related holds one search result, or the error that search hit.
type Related struct {
	Page *datastore.SearchResult[domain.File]
	Err  error
}

// MarshalJSON renders a failed search as "SearchException: <error>".
func (r Related) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal("SearchException: " + r.Err.Error())
	}
	return json.Marshal(r.Page)
}

// RelatedFiles looks for files similar to sha256 by tlsh, by each half of
// the ssdeep hash and by similarity vector. A failing search is reported in
// its own slot and does not stop the others.
func (m *Manager) RelatedFiles(ctx context.Context, u *auth.User, sha256 string, p Params) (map[string]Related, error) {
	file, err := m.stores.Files.Get(ctx, sha256)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, apperr.Errorf(apperr.ErrNotFound, "This file does not exists")
	}
	if err != nil {
		return nil, err
	}
	if !m.access.IsAccessible(u.Classification, file.Classification) {
		return nil, apperr.Errorf(apperr.ErrForbidden, "You are not allowed to view this file")
	}

	search := func(query string) Related {
		page, err := m.stores.Files.Search(ctx, datastore.SearchRequest{
			Query:   query,
			Filters: []string{fmt.Sprintf("NOT(sha256:%s)", datastore.Quote(sha256))},
			Sort:    p.Sort,
			Offset:  p.Offset,
			Rows:    p.Rows,
			Access:  u.Access,
		})
		return Related{Page: page, Err: err}
	}

	out := make(map[string]Related, 4)

	if file.TLSH == "" {
		out["tlsh"] = Related{Err: errors.New("file has no tlsh hash")}
	} else {
		out["tlsh"] = search("tlsh:" + datastore.Quote(file.TLSH))
	}

	parts := strings.Split(file.SSDeep, ":")
	if len(parts) < 3 {
		err := fmt.Errorf("invalid ssdeep hash %q", file.SSDeep)
		out["ssdeep1"], out["ssdeep2"] = Related{Err: err}, Related{Err: err}
	} else {
		out["ssdeep1"] = search("ssdeep:*:" + escape(parts[1]) + ":*")
		out["ssdeep2"] = search("ssdeep:*:" + escape(parts[2]))
	}

	vq, err := m.vectorQuery(ctx, sha256)
	if err != nil {
		out["vector"] = Related{Err: err}
	} else {
		out["vector"] = search(vq)
	}
	return out, nil
}

// vectorQuery builds a query matching the files whose vector results share
// a vector with sha256.
func (m *Manager) vectorQuery(ctx context.Context, sha256 string) (string, error) {
	own, err := m.stores.Results.Search(ctx, datastore.SearchRequest{
		Query: fmt.Sprintf("sha256:%s AND response.service_name:%s", datastore.Quote(sha256), VectorService),
		Sort:  "created desc",
	})
	if err != nil {
		return "", err
	}

	var terms []string
	seen := make(map[string]bool)
	for _, r := range own.Items {
		for _, sec := range r.Result.Sections {
			for _, v := range datastore.Lookup(map[string]any{"tags": sec.Tags}, "tags.vector") {
				s := fmt.Sprint(v)
				if !seen[s] {
					seen[s] = true
					terms = append(terms, "result.sections.tags.vector:"+datastore.Quote(s))
				}
			}
		}
	}
	if len(terms) == 0 {
		return "", errors.New("no similarity vector for this file")
	}

	var files []string
	found := make(map[string]bool)
	for id, err := range m.stores.Results.StreamIDs(ctx, strings.Join(terms, " OR "), "") {
		if err != nil {
			return "", err
		}
		h, _, _ := strings.Cut(id, ".")
		if !found[h] {
			found[h] = true
			files = append(files, "sha256:"+datastore.Quote(h))
		}
	}
	if len(files) == 0 {
		return "", errors.New("no file shares this vector")
	}
	return strings.Join(files, " OR "), nil
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `"`, `\"`, ` `, `\ `, `(`, `\(`, `)`, `\)`).Replace(s)
}
