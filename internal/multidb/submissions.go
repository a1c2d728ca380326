package multidb

import (
	"context"
	"log/slog"

	"github.com/bigkaa/labelportal/internal/domain/model"
	"github.com/bigkaa/labelportal/internal/repository"
)

// Submissions — repository.SubmissionRepository поверх цепочки стратегий.
type Submissions struct {
	c *chain[repository.SubmissionRepository]
}

// NewSubmissions создаёт фасад релизов.
func NewSubmissions(strategies []Strategy[repository.SubmissionRepository], bs BreakerSettings, logger *slog.Logger) (*Submissions, error) {
	c, err := newChain("submissions", strategies, bs, logger)
	if err != nil {
		return nil, err
	}
	return &Submissions{c: c}, nil
}

func (s *Submissions) Strategies() []string { return s.c.names() }

func (s *Submissions) Create(ctx context.Context, sub *model.Submission) error {
	return exec(ctx, s.c, "create", func(r repository.SubmissionRepository) error {
		return r.Create(ctx, sub)
	})
}

func (s *Submissions) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	return call(ctx, s.c, "get_by_id", func(r repository.SubmissionRepository) (*model.Submission, error) {
		return r.GetByID(ctx, id)
	})
}

func (s *Submissions) List(ctx context.Context, filters repository.SubmissionFilters, limit, offset int) ([]*model.Submission, error) {
	return call(ctx, s.c, "list", func(r repository.SubmissionRepository) ([]*model.Submission, error) {
		return r.List(ctx, filters, limit, offset)
	})
}

func (s *Submissions) Count(ctx context.Context, filters repository.SubmissionFilters) (int, error) {
	return call(ctx, s.c, "count", func(r repository.SubmissionRepository) (int, error) {
		return r.Count(ctx, filters)
	})
}

func (s *Submissions) Update(ctx context.Context, sub *model.Submission) error {
	return exec(ctx, s.c, "update", func(r repository.SubmissionRepository) error {
		return r.Update(ctx, sub)
	})
}

func (s *Submissions) Transition(ctx context.Context, sub *model.Submission, from string) error {
	return exec(ctx, s.c, "transition", func(r repository.SubmissionRepository) error {
		return r.Transition(ctx, sub, from)
	})
}

func (s *Submissions) SoftDelete(ctx context.Context, id string) error {
	return exec(ctx, s.c, "soft_delete", func(r repository.SubmissionRepository) error {
		return r.SoftDelete(ctx, id)
	})
}

func (s *Submissions) CountByStatus(ctx context.Context, uploaderID *string) (map[string]int, error) {
	return call(ctx, s.c, "count_by_status", func(r repository.SubmissionRepository) (map[string]int, error) {
		return r.CountByStatus(ctx, uploaderID)
	})
}
