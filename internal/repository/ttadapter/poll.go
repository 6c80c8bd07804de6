package ttadapter

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tarantool/go-tarantool/v2"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

const (
	pollSpace    = "polls"
	primaryIndex = "primary"
)

// PollRepository keeps a copy of the poll store in the polls space.
type PollRepository struct {
	conn tarantool.Doer
}

func NewPollRepository(conn tarantool.Doer) *PollRepository {
	return &PollRepository{
		conn: conn,
	}
}

func (r *PollRepository) LoadAll(ctx context.Context) ([]*domain.Poll, error) {
	var res []PollModel
	if err := r.conn.Do(
		tarantool.NewSelectRequest(pollSpace).
			Context(ctx).
			Index(primaryIndex).
			Iterator(tarantool.IterAll),
	).GetTyped(&res); err != nil {
		return nil, errors.Wrap(err, "could not select typed polls in tarantool")
	}

	polls := make([]*domain.Poll, len(res))
	for i := range res {
		polls[i] = res[i].ToPoll()
	}
	return polls, nil
}

func (r *PollRepository) Save(ctx context.Context, poll *domain.Poll) error {
	if _, err := r.conn.Do(
		tarantool.NewReplaceRequest(pollSpace).
			Context(ctx).
			Tuple(NewPollModel(poll)),
	).Get(); err != nil {
		return errors.Wrapf(err, "could not replace poll %q in tarantool", poll.Name)
	}
	return nil
}

func (r *PollRepository) DeleteByName(ctx context.Context, name string) error {
	if _, err := r.conn.Do(
		tarantool.NewDeleteRequest(pollSpace).
			Context(ctx).
			Index(primaryIndex).
			Key(tarantool.StringKey{S: name}),
	).Get(); err != nil {
		return errors.Wrapf(err, "could not delete poll %q in tarantool", name)
	}
	return nil
}

// Sync makes the polls space hold exactly polls.
func (r *PollRepository) Sync(ctx context.Context, polls []*domain.Poll) error {
	stored, err := r.LoadAll(ctx)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(polls))
	for _, poll := range polls {
		keep[poll.Name] = struct{}{}
		if err = r.Save(ctx, poll); err != nil {
			return err
		}
	}
	for _, poll := range stored {
		if _, ok := keep[poll.Name]; ok {
			continue
		}
		if err = r.DeleteByName(ctx, poll.Name); err != nil {
			return err
		}
	}
	return nil
}
