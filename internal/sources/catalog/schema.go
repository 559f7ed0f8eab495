package catalog

import "github.com/MrSnakeDoc/sigdesk/internal/domain"

// File represents the top-level structure of the service catalog yaml.
//
//	services:
//	  - name: YARA
//	    version: 4.5.0
//	    update_config:
//	      generates_signatures: true
//	      sources:
//	        - name: community
//	          uri: https://example.org/rules.zip
//	          password: "{{YARA_SOURCE_PASSWORD}}"
type File struct {
	Services []ServiceProps `yaml:"services"`
}

// ServiceProps contains one catalog entry. Enabled defaults to true.
type ServiceProps struct {
	Name         string               `yaml:"name"`
	Version      string               `yaml:"version,omitempty"`
	Enabled      *bool                `yaml:"enabled,omitempty"`
	UpdateConfig *domain.UpdateConfig `yaml:"update_config,omitempty"`
}
