// Package signature manages detection signatures: their lifecycle, the
// bundles served to updaters and the update sources of each service.
package signature

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/cache"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
	"github.com/MrSnakeDoc/sigdesk/internal/metrics"
)

// AccessChecker decides whether a user classification may read a document.
type AccessChecker interface {
	IsAccessible(user, doc string) bool
	Unrestricted() string
}

// Stores are the collections the manager works on.
type Stores struct {
	Signatures    *datastore.Collection[domain.Signature]
	Results       *datastore.Collection[domain.Result]
	Services      *datastore.Collection[domain.Service]
	ServiceDeltas *datastore.Collection[domain.ServiceDelta]
}

// Manager implements the signature operations.
type Manager struct {
	stores  Stores
	access  AccessChecker
	bundles *cache.Guarded
	cfg     Config
	log     logger.Logger
	now     func() time.Time
}

// NewManager creates a manager.
func NewManager(stores Stores, access AccessChecker, bundles *cache.Guarded, cfg Config, log logger.Logger) *Manager {
	return &Manager{
		stores:  stores,
		access:  access,
		bundles: bundles,
		cfg:     cfg,
		log:     log.Named("signature"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) readable(u *auth.User, sig *domain.Signature) bool {
	cls := sig.Classification
	if cls == "" {
		cls = m.access.Unrestricted()
	}
	return m.access.IsAccessible(u.Classification, cls)
}

// save stamps last_modified and persists sig under id.
func (m *Manager) save(ctx context.Context, id string, sig *domain.Signature) error {
	sig.ID = id
	sig.LastModified = m.now()
	return m.stores.Signatures.Save(ctx, id, sig)
}

func (m *Manager) load(ctx context.Context, sid string) (*domain.Signature, error) {
	sig, err := m.stores.Signatures.Get(ctx, sid)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, apperr.Errorf(apperr.ErrNotFound, "Signature not found. (%s)", sid)
	}
	return sig, err
}

func emptyInput(sig *domain.Signature) error {
	if missing := sig.MissingFields(); len(missing) > 0 {
		return apperr.Errorf(apperr.ErrEmptyInput,
			"Signature name, type and data are mandatory fields. Missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Add stores a new signature revision and returns its id. The family id is
// derived from the rule body when absent.
func (m *Manager) Add(ctx context.Context, sig *domain.Signature) (string, error) {
	if err := emptyInput(sig); err != nil {
		return "", err
	}
	if sig.SignatureID == "" {
		sig.SignatureID = domain.ShortID(sig.Data)
	}
	if sig.Revision == 0 {
		sig.Revision = 1
	}
	if sig.Status == "" {
		sig.Status = domain.StatusTesting
	}
	if sig.Classification == "" {
		sig.Classification = m.access.Unrestricted()
	}

	// Other revisions of the same family may share the name.
	query := fmt.Sprintf("name:%s AND type:%s AND source:%s AND NOT signature_id:%s",
		datastore.Quote(sig.Name), datastore.Quote(sig.Type), datastore.Quote(sig.Source), datastore.Quote(sig.SignatureID))
	others, err := m.stores.Signatures.Search(ctx, datastore.SearchRequest{Query: query, Rows: 1})
	if err != nil {
		return "", fmt.Errorf("check signature name: %w", err)
	}
	if others.Total > 0 {
		return "", apperr.Errorf(apperr.ErrConflict, "A signature with that name already exists")
	}

	key := sig.Key()
	if err := m.save(ctx, key, sig); err != nil {
		return "", err
	}
	m.log.Info("signature added", logger.String("id", key), logger.String("type", sig.Type))
	return key, nil
}

// AddUpdate creates or replaces a signature keyed by its family id, which
// defaults to {source}.{name}.
func (m *Manager) AddUpdate(ctx context.Context, sig *domain.Signature) (string, error) {
	if err := emptyInput(sig); err != nil {
		return "", err
	}
	if sig.SignatureID == "" {
		sig.SignatureID = sig.Source + "." + sig.Name
	}
	if sig.Revision == 0 {
		sig.Revision = 1
	}
	if sig.Status == "" {
		sig.Status = domain.StatusTesting
	}
	if sig.Classification == "" {
		sig.Classification = m.access.Unrestricted()
	}
	if err := m.save(ctx, sig.SignatureID, sig); err != nil {
		return "", err
	}
	return sig.SignatureID, nil
}

// Get returns a signature readable by u.
func (m *Manager) Get(ctx context.Context, u *auth.User, sid string) (*domain.Signature, error) {
	sig, err := m.load(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !m.readable(u, sig) {
		return nil, apperr.Errorf(apperr.ErrForbidden, "You are not allowed to view this signature.")
	}
	return sig, nil
}

// Update replaces an existing signature.
func (m *Manager) Update(ctx context.Context, sid string, sig *domain.Signature) error {
	if _, err := m.load(ctx, sid); err != nil {
		return err
	}
	return m.save(ctx, sid, sig)
}

// Delete removes a signature readable by u.
func (m *Manager) Delete(ctx context.Context, u *auth.User, sid string) error {
	if _, err := m.Get(ctx, u, sid); err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			return apperr.Errorf(apperr.ErrForbidden, "You are not allowed to delete this signature.")
		}
		return err
	}
	if _, err := m.stores.Signatures.Delete(ctx, sid); err != nil {
		return err
	}
	m.log.Info("signature deleted", logger.String("id", sid))
	return nil
}

// ChangeStatus moves a signature to status. Moving to an exclusive status
// disables every family member already in it. The cascade and the final save
// are separate writes: if the final save fails the siblings stay disabled.
func (m *Manager) ChangeStatus(ctx context.Context, u *auth.User, sid, status string) error {
	st := m.cfg.Statuses
	if !st.Known(status) {
		return apperr.Errorf(apperr.ErrInvalidStatus, "You cannot apply the status %s on signatures.", status)
	}

	sig, err := m.load(ctx, sid)
	if err != nil {
		return err
	}
	if !m.readable(u, sig) {
		return apperr.Errorf(apperr.ErrForbidden, "You are not allowed change status on this signature")
	}
	if st.IsStale(sig.Status) && !st.IsDraft(status) {
		return apperr.Errorf(apperr.ErrForbidden,
			"Only action available while signature in %s status is to change signature to a DRAFT status. (%s)",
			sig.Status, strings.Join(st.Draft, ", "))
	}
	if st.IsDeployed(sig.Status) && st.IsDraft(status) {
		return apperr.Errorf(apperr.ErrForbidden,
			"You cannot change the status of signature %s from %s to %s.", sid, sig.Status, status)
	}

	now := m.now()
	var disabled []string
	if st.IsExclusive(status) {
		disabled, err = m.disableSiblings(ctx, u, sig.SignatureID, sid, status, now)
		if err != nil {
			return err
		}
	}

	sig.StatusChange(status, u.Username, now)
	if err := m.save(ctx, sid, sig); err != nil {
		if len(disabled) > 0 {
			m.log.Error("status change failed after siblings were disabled",
				logger.String("id", sid),
				logger.String("status", status),
				logger.Strings("disabled", disabled),
				logger.Error(err))
		}
		return err
	}

	metrics.StatusChanges.WithLabelValues(status).Inc()
	m.log.Info("signature status changed",
		logger.String("id", sid),
		logger.String("status", status),
		logger.String("user", u.Username),
		logger.Int("siblings_disabled", len(disabled)))
	return nil
}

// disableSiblings sets every other family member currently in status to
// DISABLED and returns their ids.
func (m *Manager) disableSiblings(ctx context.Context, u *auth.User, family, sid, status string, now time.Time) ([]string, error) {
	query := fmt.Sprintf("status:%s AND signature_id:%s AND NOT id:%s",
		datastore.Quote(status), datastore.Quote(family), datastore.Quote(sid))

	var ids []string
	for id, err := range m.stores.Signatures.StreamIDs(ctx, query, "") {
		if err != nil {
			return nil, fmt.Errorf("find siblings of %s: %w", sid, err)
		}
		ids = append(ids, id)
	}

	var disabled []string
	for _, id := range ids {
		other, err := m.stores.Signatures.Get(ctx, id)
		if err != nil {
			if errors.Is(err, datastore.ErrNotFound) {
				continue
			}
			return disabled, err
		}
		other.StatusChange(domain.StatusDisabled, u.Username, now)
		if err := m.save(ctx, id, other); err != nil {
			return disabled, fmt.Errorf("disable sibling %s: %w", id, err)
		}
		disabled = append(disabled, id)
		metrics.CascadeDisabled.Inc()
	}
	return disabled, nil
}

// LastModified returns the newest last_modified across signatures of sigType
// (all types when empty or "*").
func (m *Manager) LastModified(ctx context.Context, sigType string) (time.Time, error) {
	query := "*"
	if sigType != "" && sigType != "*" {
		query = "type:" + datastore.Quote(sigType)
	}
	var latest time.Time
	for sig, err := range m.stores.Signatures.Stream(ctx, query, "") {
		if err != nil {
			return time.Time{}, err
		}
		if sig.LastModified.After(latest) {
			latest = sig.LastModified
		}
	}
	return latest, nil
}

// UpdateAvailable reports whether signatures of sigType changed after since.
func (m *Manager) UpdateAvailable(ctx context.Context, sigType string, since time.Time) (bool, error) {
	latest, err := m.LastModified(ctx, sigType)
	if err != nil {
		return false, err
	}
	return latest.After(since), nil
}
