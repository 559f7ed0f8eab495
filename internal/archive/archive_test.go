package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/classification"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/index"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

var (
	viewer = &auth.User{Username: "viewer", Classification: "U", Access: "U"}
	boss   = &auth.User{Username: "boss", Classification: "S//LE", Access: "S//LE"}
)

func newManager(t *testing.T, enabled bool) *Manager {
	t.Helper()
	engine, err := classification.New(classification.DefaultDefinition())
	require.NoError(t, err)
	backend := index.NewMemoryIndex()
	stores := Stores{
		Submissions: datastore.NewCollection[domain.Submission]("submission", backend, engine.IsAccessible),
		Archive:     datastore.NewCollection[domain.Submission]("submission_archive", backend, engine.IsAccessible),
		Files:       datastore.NewCollection[domain.File]("file", backend, engine.IsAccessible),
		Results:     datastore.NewCollection[domain.Result]("result", backend, engine.IsAccessible),
	}
	return NewManager(stores, engine, enabled, logger.NewNop())
}

func TestArchiveSubmission(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, true)
	require.NoError(t, m.stores.Submissions.Save(ctx, "s1", &domain.Submission{SID: "s1", Classification: "U"}))
	require.NoError(t, m.stores.Submissions.Save(ctx, "s2", &domain.Submission{SID: "s2", Classification: "U"}))
	require.NoError(t, m.stores.Submissions.Save(ctx, "secret", &domain.Submission{SID: "secret", Classification: "S"}))

	act, err := m.ArchiveSubmission(ctx, viewer, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, &Action{Success: true, Action: "archive"}, act)

	hot, err := m.stores.Submissions.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, hot.Archived)
	require.NotNil(t, hot.ArchiveTS)
	cold, err := m.stores.Archive.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, cold.Archived)

	_, err = m.ArchiveSubmission(ctx, viewer, "s1", false)
	assert.ErrorIs(t, err, apperr.ErrSubmission)

	_, err = m.ArchiveSubmission(ctx, viewer, "s2", true)
	require.NoError(t, err)
	_, err = m.stores.Submissions.Get(ctx, "s2")
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	_, err = m.ArchiveSubmission(ctx, viewer, "secret", false)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = m.ArchiveSubmission(ctx, viewer, "missing", false)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	data, err := json.Marshal(act)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"action":"archive","sid":null}`, string(data))
}

func TestArchiveDisabled(t *testing.T) {
	m := newManager(t, false)
	_, err := m.ArchiveSubmission(context.Background(), boss, "s1", false)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func seedFiles(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	files := []domain.File{
		{SHA256: "target", Classification: "U", TLSH: "T1ABC", SSDeep: "3:aaaa:bbbb", Seen: domain.FileSeen{Last: base}},
		{SHA256: "same_tlsh_old", Classification: "U", TLSH: "T1ABC", SSDeep: "3:zzzz:yyyy", Seen: domain.FileSeen{Last: base.Add(time.Hour)}},
		{SHA256: "same_tlsh_new", Classification: "U", TLSH: "T1ABC", SSDeep: "3:zzzz:yyyy", Seen: domain.FileSeen{Last: base.Add(2 * time.Hour)}},
		{SHA256: "same_block1", Classification: "U", TLSH: "T9", SSDeep: "6:aaaa:cccc", Seen: domain.FileSeen{Last: base}},
		{SHA256: "same_block2", Classification: "U", TLSH: "T9", SSDeep: "6:dddd:bbbb", Seen: domain.FileSeen{Last: base}},
		{SHA256: "hidden", Classification: "S", TLSH: "T1ABC", SSDeep: "3:aaaa:bbbb", Seen: domain.FileSeen{Last: base}},
		{SHA256: "vec_peer", Classification: "U", TLSH: "T8", SSDeep: "6:x:y", Seen: domain.FileSeen{Last: base}},
	}
	for i := range files {
		require.NoError(t, m.stores.Files.Save(ctx, files[i].SHA256, &files[i]))
	}

	vector := func(sha, v string) *domain.Result {
		return &domain.Result{
			SHA256:   sha,
			Response: domain.ResultResponse{ServiceName: VectorService},
			Created:  base,
			Result: domain.ResultBody{Sections: []domain.ResultSection{
				{Tags: map[string]any{"vector": []string{v}}},
			}},
		}
	}
	require.NoError(t, m.stores.Results.Save(ctx, "target.APIVector.v1", vector("target", "v-123")))
	require.NoError(t, m.stores.Results.Save(ctx, "vec_peer.APIVector.v1", vector("vec_peer", "v-123")))
}

func names(r Related) []string {
	var out []string
	for _, f := range r.Page.Items {
		out = append(out, f.SHA256)
	}
	return out
}

func TestRelatedFiles(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, true)
	seedFiles(t, m)

	out, err := m.RelatedFiles(ctx, viewer, "target", DefaultParams())
	require.NoError(t, err)
	require.Len(t, out, 4)

	for k, r := range out {
		require.NoError(t, r.Err, k)
	}
	assert.Equal(t, []string{"same_tlsh_new", "same_tlsh_old"}, names(out["tlsh"]))
	assert.Equal(t, []string{"same_block1"}, names(out["ssdeep1"]))
	assert.Equal(t, []string{"same_block2"}, names(out["ssdeep2"]))
	assert.Equal(t, []string{"vec_peer"}, names(out["vector"]))

	paged, err := m.RelatedFiles(ctx, viewer, "target", Params{Offset: 1, Rows: 1, Sort: "seen.last desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"same_tlsh_old"}, names(paged["tlsh"]))
	assert.Equal(t, 2, paged["tlsh"].Page.Total)
}

func TestRelatedFilesPartialFailure(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, true)
	require.NoError(t, m.stores.Files.Save(ctx, "lonely", &domain.File{SHA256: "lonely", Classification: "U", TLSH: "T1"}))

	out, err := m.RelatedFiles(ctx, viewer, "lonely", DefaultParams())
	require.NoError(t, err)
	assert.NoError(t, out["tlsh"].Err)
	assert.Error(t, out["ssdeep1"].Err)
	assert.Error(t, out["ssdeep2"].Err)
	assert.Error(t, out["vector"].Err)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded["vector"], "SearchException: ")
	assert.IsType(t, map[string]any{}, decoded["tlsh"])
}

func TestRelatedFilesAccess(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, true)
	seedFiles(t, m)

	_, err := m.RelatedFiles(ctx, viewer, "hidden", DefaultParams())
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = m.RelatedFiles(ctx, viewer, "nope", DefaultParams())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	out, err := m.RelatedFiles(ctx, boss, "target", DefaultParams())
	require.NoError(t, err)
	assert.Contains(t, names(out["tlsh"]), "hidden")
}
