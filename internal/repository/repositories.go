package repository

import (
	"github.com/deppfellow/go-datatables/internal/server"
)

// Repositories is the container of every repository.
type Repositories struct {
	Grids *GridRepository
}

// NewRepositories builds every repository from the server's database and
// configuration.
func NewRepositories(s *server.Server) (*Repositories, error) {
	grids, err := NewGridRepository(s)
	if err != nil {
		return nil, err
	}
	return &Repositories{Grids: grids}, nil
}
