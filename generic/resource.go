/*
resource.go - Resource type registration and lookup

PURPOSE:
  Provides a registry for domain packages to register their resource types.
  Stores persist the resource as a plain string; the registry turns it
  back into the domain's concrete type when transactions are loaded.

USAGE:
  // In rewards/types.go
  func init() {
      generic.RegisterResource(ResourcePoints)
  }

  // In store/sqlite
  tx.ResourceType = generic.GetOrCreateResource("points")

SEE ALSO:
  - types.go: ResourceType interface definition
*/
package generic

import "sync"

// =============================================================================
// RESOURCE REGISTRY
// =============================================================================

var (
	resourceRegistry = make(map[string]ResourceType)
	registryMu       sync.RWMutex
)

// RegisterResource adds a resource type to the global registry.
func RegisterResource(r ResourceType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	resourceRegistry[r.ResourceID()] = r
}

// LookupResource finds a registered resource type by ID, nil if unknown.
func LookupResource(id string) ResourceType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return resourceRegistry[id]
}

// StringResource is the fallback for ids nobody registered.
type StringResource struct {
	ID     string
	Domain string
}

func (r StringResource) ResourceID() string     { return r.ID }
func (r StringResource) ResourceDomain() string { return r.Domain }

// GetOrCreateResource looks up a resource type, or creates a StringResource fallback.
func GetOrCreateResource(id string) ResourceType {
	if r := LookupResource(id); r != nil {
		return r
	}
	return StringResource{ID: id, Domain: "unknown"}
}
