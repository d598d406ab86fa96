package region

import (
	"fmt"
	"sort"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// ErrUnknownRegion is returned when a lookup names a region that was never
// configured.
var ErrUnknownRegion = fmt.Errorf("region: not configured")

// Registry is an immutable, ordered set of sending regions. The primary
// region sorts first; secondaries keep their configured order after it.
type Registry struct {
	ordered []domain.Region
	byName  map[string]domain.Region
}

// NewRegistry builds a registry from configured regions. Exactly one region
// must be marked primary; config validation enforces that before this runs.
func NewRegistry(regions []domain.Region) (*Registry, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("region: at least one region required")
	}

	ordered := make([]domain.Region, len(regions))
	copy(ordered, regions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Primary && !ordered[j].Primary
	})

	byName := make(map[string]domain.Region, len(ordered))
	for _, r := range ordered {
		if _, dup := byName[r.Name]; dup {
			return nil, fmt.Errorf("region: duplicate region %q", r.Name)
		}
		byName[r.Name] = r
	}

	return &Registry{ordered: ordered, byName: byName}, nil
}

// Candidates returns all regions in failover order, primary first. The
// returned slice is a copy; callers may not mutate registry state.
func (r *Registry) Candidates() []domain.Region {
	out := make([]domain.Region, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Primary returns the primary region.
func (r *Registry) Primary() domain.Region {
	return r.ordered[0]
}

// Get looks up a region by name.
func (r *Registry) Get(name string) (domain.Region, error) {
	reg, ok := r.byName[name]
	if !ok {
		return domain.Region{}, fmt.Errorf("%w: %s", ErrUnknownRegion, name)
	}
	return reg, nil
}
