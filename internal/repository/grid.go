package repository

import (
	"fmt"
	"sort"

	"github.com/deppfellow/go-datatables/internal/queryset/sqlset"
	"github.com/deppfellow/go-datatables/internal/server"
)

// GridRepository holds one unfiltered SQL queryset per configured grid.
// Querysets are immutable, so they are shared by all requests.
type GridRepository struct {
	sets  map[string]*sqlset.Set
	names []string
}

func NewGridRepository(s *server.Server) (*GridRepository, error) {
	repo := &GridRepository{sets: make(map[string]*sqlset.Set, len(s.Config.Grids))}
	for name, grid := range s.Config.Grids {
		set, err := sqlset.New(s.DB.Dialect(), s.DB, grid.Table)
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", name, err)
		}
		repo.sets[name] = set
		repo.names = append(repo.names, name)
	}
	sort.Strings(repo.names)
	return repo, nil
}

// Get returns the queryset of a grid.
func (r *GridRepository) Get(name string) (*sqlset.Set, bool) {
	set, ok := r.sets[name]
	return set, ok
}

// Names returns the configured grid names in sorted order.
func (r *GridRepository) Names() []string {
	return append([]string(nil), r.names...)
}
