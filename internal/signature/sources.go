package signature

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MrSnakeDoc/sigdesk/internal/apperr"
	"github.com/MrSnakeDoc/sigdesk/internal/datastore"
	"github.com/MrSnakeDoc/sigdesk/internal/domain"
	"github.com/MrSnakeDoc/sigdesk/internal/logger"
)

// effectiveService loads a service with its user edits applied.
func (m *Manager) effectiveService(ctx context.Context, name string) (*domain.Service, *domain.ServiceDelta, error) {
	base, err := m.stores.Services.Get(ctx, name)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, nil, apperr.Errorf(apperr.ErrNotFound, "Service %s was not found.", name)
	}
	if err != nil {
		return nil, nil, err
	}

	delta, err := m.stores.ServiceDeltas.Get(ctx, name)
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		delta = &domain.ServiceDelta{}
	case err != nil:
		return nil, nil, err
	}
	return domain.WithDelta(base, delta), delta, nil
}

func (m *Manager) saveSources(ctx context.Context, service string, delta *domain.ServiceDelta, sources []domain.Source) error {
	if sources == nil {
		sources = []domain.Source{}
	}
	if delta.UpdateConfig == nil {
		delta.UpdateConfig = &domain.DeltaUpdateConfig{}
	}
	delta.UpdateConfig.Sources = sources
	if err := m.stores.ServiceDeltas.Save(ctx, service, delta); err != nil {
		return fmt.Errorf("save sources of %s: %w", service, err)
	}
	return nil
}

// ListSources returns the sources of every signature generating service.
func (m *Manager) ListSources(ctx context.Context) (map[string][]domain.Source, error) {
	out := make(map[string][]domain.Source)
	for base, err := range m.stores.Services.Stream(ctx, "*", "") {
		if err != nil {
			return nil, err
		}
		delta, err := m.stores.ServiceDeltas.Get(ctx, base.Name)
		if err != nil && !errors.Is(err, datastore.ErrNotFound) {
			return nil, err
		}
		svc := domain.WithDelta(base, delta)
		if !svc.GeneratesSignatures() {
			continue
		}
		sources := svc.Sources()
		if sources == nil {
			sources = []domain.Source{}
		}
		out[svc.Name] = sources
	}
	return out, nil
}

// AddSource appends src to the sources of service.
func (m *Manager) AddSource(ctx context.Context, service string, src domain.Source) error {
	if src.Name == "" || src.URI == "" {
		return apperr.Errorf(apperr.ErrEmptyInput, "Source name and uri are mandatory fields.")
	}
	svc, delta, err := m.effectiveService(ctx, service)
	if err != nil {
		return err
	}
	if !svc.GeneratesSignatures() {
		return apperr.Errorf(apperr.ErrNotSignatureGenerating,
			"This service does not generate signatures therefore you cannot add a source to get them from")
	}

	sources := svc.Sources()
	for _, s := range sources {
		if s.Name == src.Name {
			return apperr.Errorf(apperr.ErrConflict, "Update source filename already exist: %s", src.Name)
		}
		if s.URI == src.URI {
			return apperr.Errorf(apperr.ErrConflict, "Update source uri already exist: %s", src.URI)
		}
	}

	if err := m.saveSources(ctx, service, delta, append(sources, src)); err != nil {
		return err
	}
	m.log.Info("signature source added", logger.String("service", service), logger.String("source", src.Name))
	return nil
}

// UpdateSource replaces the source called name, keeping its position.
// Renaming is not allowed.
func (m *Manager) UpdateSource(ctx context.Context, service, name string, src domain.Source) error {
	if src.Name != name {
		return apperr.Errorf(apperr.ErrForbidden, "You are not allowed to change the source resulting filename.")
	}
	svc, delta, err := m.effectiveService(ctx, service)
	if err != nil {
		return err
	}
	if !svc.GeneratesSignatures() {
		return apperr.Errorf(apperr.ErrNotSignatureGenerating,
			"This service does not generate signatures therefore you cannot update its sources.")
	}

	sources := svc.Sources()
	i := domain.IndexSource(sources, name)
	if i < 0 {
		return apperr.Errorf(apperr.ErrNotFound, "Could not find source '%s' in service %s.", name, service)
	}
	sources[i] = src

	if err := m.saveSources(ctx, service, delta, sources); err != nil {
		return err
	}
	m.log.Info("signature source updated", logger.String("service", service), logger.String("source", name))
	return nil
}

// DeleteSource removes the source called name.
func (m *Manager) DeleteSource(ctx context.Context, service, name string) error {
	svc, delta, err := m.effectiveService(ctx, service)
	if err != nil {
		return err
	}
	if !svc.GeneratesSignatures() {
		return apperr.Errorf(apperr.ErrNotSignatureGenerating,
			"This service does not generate signatures therefore you cannot delete one of its sources.")
	}

	sources := svc.Sources()
	i := domain.IndexSource(sources, name)
	if i < 0 {
		return apperr.Errorf(apperr.ErrNotFound, "Could not find source '%s' in service %s.", name, service)
	}

	if err := m.saveSources(ctx, service, delta, slices.Delete(sources, i, i+1)); err != nil {
		return err
	}
	m.log.Info("signature source deleted", logger.String("service", service), logger.String("source", name))
	return nil
}
