package provider

import (
	"fmt"
	"strings"
)

// ValidateDescriptor checks that a discovered descriptor can be instantiated
func ValidateDescriptor(desc Descriptor) error {
	// Check for required fields
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("descriptor must declare a provider name")
	}
	if desc.New == nil {
		return fmt.Errorf("descriptor %q has no constructor", desc.Name)
	}

	return nil
}

// isTemplateEntry reports names reserved for private or template entries.
func isTemplateEntry(name string) bool {
	return strings.HasPrefix(name, "_") || name == "base"
}

// Capabilities lists which optional interfaces a source implements.
type Capabilities struct {
	Routes          bool
	EpisodeMappings bool
}

// CapabilitiesOf inspects a source for its optional interfaces. Reload
// records the result for every loaded source.
func CapabilitiesOf(src Source) Capabilities {
	_, routes := src.(RouteProvider)
	_, mappings := src.(EpisodeMappingUpdater)
	return Capabilities{Routes: routes, EpisodeMappings: mappings}
}
