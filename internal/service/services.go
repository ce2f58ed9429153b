package service

import (
	"github.com/deppfellow/go-datatables/internal/repository"
	"github.com/deppfellow/go-datatables/internal/server"
)

type Services struct {
	Grids *GridService
}

func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	gridService, err := NewGridService(s, repos.Grids)
	if err != nil {
		return nil, err
	}

	return &Services{
		Grids: gridService,
	}, nil
}
