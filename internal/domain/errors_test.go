package domain

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPollErrorMessages(t *testing.T) {
	assert.Equal(t, "Poll does not exist.", ErrPollNotExist.Error())
	assert.Equal(t, "PollNotExist", ErrPollNotExist.String())
	assert.Equal(t, "Too many polls created.", ErrTooManyPolls.Error())

	for e := ErrTooManyPolls; e <= ErrVotingNotClosed; e++ {
		assert.Contains(t, pollErrorNames, e)
		assert.Contains(t, pollErrorMessages, e)
	}

	assert.Equal(t, "Unknown poll error.", PollError(0).Error())
	assert.Equal(t, "Unknown", PollError(0).String())
}

func TestPollErrorIs(t *testing.T) {
	wrapped := errors.Wrap(ErrVotingIsOver, "vote")
	assert.ErrorIs(t, wrapped, ErrVotingIsOver)
	assert.NotErrorIs(t, wrapped, ErrVotingNotClosed)

	var pollErr PollError
	assert.True(t, errors.As(fmt.Errorf("results: %w", ErrVotingNotClosed), &pollErr))
	assert.Equal(t, ErrVotingNotClosed, pollErr)
}
