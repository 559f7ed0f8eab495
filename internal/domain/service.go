package domain

import (
	"slices"
	"time"
)

// Source is a remote location a service pulls signatures from. Name and URI
// are unique within a service.
type Source struct {
	Name      string            `json:"name" yaml:"name"`
	URI       string            `json:"uri" yaml:"uri"`
	Username  string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string            `json:"password,omitempty" yaml:"password,omitempty"`
	Header    map[string]string `json:"header,omitempty" yaml:"header,omitempty"`
	PublicKey string            `json:"public_key,omitempty" yaml:"public_key,omitempty"`
	Pattern   string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// UpdateConfig describes how a service refreshes its signatures.
type UpdateConfig struct {
	GeneratesSignatures bool     `json:"generates_signatures" yaml:"generates_signatures"`
	Sources             []Source `json:"sources" yaml:"sources"`
}

// Service is the base definition of an analysis service, as shipped in the
// catalog.
type Service struct {
	Name         string        `json:"name" yaml:"name"`
	Version      string        `json:"version,omitempty" yaml:"version,omitempty"`
	Enabled      bool          `json:"enabled" yaml:"enabled"`
	UpdateConfig *UpdateConfig `json:"update_config,omitempty" yaml:"update_config,omitempty"`

	// RemovedAt is set while the service is missing from the catalog.
	RemovedAt *time.Time `json:"removed_at,omitempty" yaml:"-"`
}

// DeltaUpdateConfig holds user edits of the update config.
type DeltaUpdateConfig struct {
	Sources []Source `json:"sources"`
}

// ServiceDelta holds user edits layered over a Service.
type ServiceDelta struct {
	UpdateConfig *DeltaUpdateConfig `json:"update_config,omitempty"`
}

// GeneratesSignatures reports whether sources may be managed for s.
func (s *Service) GeneratesSignatures() bool {
	return s.UpdateConfig != nil && s.UpdateConfig.GeneratesSignatures
}

// Sources returns a copy of the service source list.
func (s *Service) Sources() []Source {
	if s.UpdateConfig == nil {
		return nil
	}
	return slices.Clone(s.UpdateConfig.Sources)
}

// WithDelta returns base with delta applied. The delta source list, when
// present, replaces the base list.
func WithDelta(base *Service, delta *ServiceDelta) *Service {
	merged := *base
	if base.UpdateConfig != nil {
		uc := *base.UpdateConfig
		uc.Sources = slices.Clone(uc.Sources)
		merged.UpdateConfig = &uc
	}
	if delta == nil || delta.UpdateConfig == nil {
		return &merged
	}
	if merged.UpdateConfig == nil {
		merged.UpdateConfig = &UpdateConfig{}
	}
	merged.UpdateConfig.Sources = slices.Clone(delta.UpdateConfig.Sources)
	return &merged
}

// IndexSource returns the position of the source named name, or -1.
func IndexSource(sources []Source, name string) int {
	return slices.IndexFunc(sources, func(s Source) bool { return s.Name == name })
}
