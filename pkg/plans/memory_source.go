package plans

import "context"

// inMemSource serves a fixed set of plans. Used for the built-in defaults and
// as a test fixture.
type inMemSource struct {
	plans map[PlanID]Plan
}

// NewInMemSource returns a Source serving deep copies of the given plans.
// Panics if no plans are provided so the catalog never starts empty.
func NewInMemSource(list ...Plan) Source {
	if len(list) == 0 {
		panic("plans: at least one plan is required")
	}
	copied := make(map[PlanID]Plan, len(list))
	for _, plan := range list {
		copied[plan.ID] = plan.clone()
	}
	return &inMemSource{plans: copied}
}

// NewDefaultSource returns a Source serving the built-in catalog.
func NewDefaultSource() Source {
	return NewInMemSource(Defaults()...)
}

func (s *inMemSource) Load(ctx context.Context) (map[PlanID]Plan, error) {
	copied := make(map[PlanID]Plan, len(s.plans))
	for id, plan := range s.plans {
		copied[id] = plan.clone()
	}
	return copied, nil
}
