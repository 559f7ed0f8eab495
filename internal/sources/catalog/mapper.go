package catalog

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/sigdesk/internal/domain"
)

// MapServices converts catalog entries to domain services. Names must be
// present and unique, and so must source names and URIs within a service.
func MapServices(file *File) ([]*domain.Service, error) {
	if file == nil || len(file.Services) == 0 {
		return nil, fmt.Errorf("no services found in catalog")
	}

	services := make([]*domain.Service, 0, len(file.Services))
	seen := make(map[string]bool, len(file.Services))

	for i, props := range file.Services {
		name := strings.TrimSpace(props.Name)
		if name == "" {
			return nil, fmt.Errorf("service #%d has no name", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("service %s is defined twice", name)
		}
		seen[name] = true

		if err := checkSources(name, props.UpdateConfig); err != nil {
			return nil, err
		}

		enabled := true
		if props.Enabled != nil {
			enabled = *props.Enabled
		}

		services = append(services, &domain.Service{
			Name:         name,
			Version:      props.Version,
			Enabled:      enabled,
			UpdateConfig: props.UpdateConfig,
		})
	}

	return services, nil
}

func checkSources(service string, uc *domain.UpdateConfig) error {
	if uc == nil {
		return nil
	}
	names := make(map[string]bool, len(uc.Sources))
	uris := make(map[string]bool, len(uc.Sources))
	for _, src := range uc.Sources {
		if src.Name == "" || src.URI == "" {
			return fmt.Errorf("service %s: every source needs a name and a uri", service)
		}
		if names[src.Name] {
			return fmt.Errorf("service %s: source name %s is used twice", service, src.Name)
		}
		if uris[src.URI] {
			return fmt.Errorf("service %s: source uri %s is used twice", service, src.URI)
		}
		names[src.Name] = true
		uris[src.URI] = true
	}
	return nil
}
