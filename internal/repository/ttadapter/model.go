package ttadapter

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Xausdorf/weighted-poll/internal/domain"
)

// PollModel - tuple of the polls space:
// [name, owner, description, options, closing_time_ns, voters, voting_details].
type PollModel struct {
	Name          string
	Owner         string
	Description   string
	Options       []string
	ClosingTime   int64
	Voters        []VoterModel
	VotingDetails []VotingDetailModel
}

// VoterModel is encoded as [name, voter, contribution].
type VoterModel struct {
	Name         string
	Voter        string
	Contribution float64
}

// VotingDetailModel is encoded as [name, option, contribution].
type VotingDetailModel struct {
	Name         string
	Option       int
	Contribution float64
}

const (
	pollModelFields         = 7
	voterModelFields        = 3
	votingDetailModelFields = 3
)

func NewPollModel(poll *domain.Poll) *PollModel {
	m := &PollModel{
		Name:          poll.Name,
		Owner:         string(poll.Owner),
		Description:   poll.Description,
		Options:       append([]string{}, poll.Options...),
		ClosingTime:   poll.ClosingTime.UnixNano(),
		Voters:        make([]VoterModel, len(poll.Voters)),
		VotingDetails: make([]VotingDetailModel, len(poll.VotingDetails)),
	}
	for i, v := range poll.Voters {
		m.Voters[i] = VoterModel{Name: v.Name, Voter: string(v.Voter), Contribution: v.Contribution}
	}
	for i, d := range poll.VotingDetails {
		m.VotingDetails[i] = VotingDetailModel{Name: d.Name, Option: d.Option, Contribution: d.Contribution}
	}
	return m
}

func (p *PollModel) ToPoll() *domain.Poll {
	poll := &domain.Poll{
		Name:          p.Name,
		Owner:         domain.Principal(p.Owner),
		Description:   p.Description,
		Options:       append([]string{}, p.Options...),
		ClosingTime:   time.Unix(0, p.ClosingTime).UTC(),
		Voters:        make([]domain.Voter, len(p.Voters)),
		VotingDetails: make([]domain.VotingDetail, len(p.VotingDetails)),
	}
	for i, v := range p.Voters {
		poll.Voters[i] = domain.Voter{Name: v.Name, Voter: domain.Principal(v.Voter), Contribution: v.Contribution}
	}
	for i, d := range p.VotingDetails {
		poll.VotingDetails[i] = domain.VotingDetail{Name: d.Name, Option: d.Option, Contribution: d.Contribution}
	}
	return poll
}

func (p *PollModel) EncodeMsgpack(e *msgpack.Encoder) error {
	if err := e.EncodeArrayLen(pollModelFields); err != nil {
		return err
	}
	if err := e.EncodeString(p.Name); err != nil {
		return err
	}
	if err := e.EncodeString(p.Owner); err != nil {
		return err
	}
	if err := e.EncodeString(p.Description); err != nil {
		return err
	}
	if err := e.EncodeArrayLen(len(p.Options)); err != nil {
		return err
	}
	for _, option := range p.Options {
		if err := e.EncodeString(option); err != nil {
			return err
		}
	}
	if err := e.EncodeInt(p.ClosingTime); err != nil {
		return err
	}
	if err := e.EncodeArrayLen(len(p.Voters)); err != nil {
		return err
	}
	for i := range p.Voters {
		if err := p.Voters[i].EncodeMsgpack(e); err != nil {
			return err
		}
	}
	if err := e.EncodeArrayLen(len(p.VotingDetails)); err != nil {
		return err
	}
	for i := range p.VotingDetails {
		if err := p.VotingDetails[i].EncodeMsgpack(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *PollModel) DecodeMsgpack(d *msgpack.Decoder) error {
	var err error
	var l int
	if l, err = d.DecodeArrayLen(); err != nil {
		return err
	}
	if l != pollModelFields {
		return fmt.Errorf("array len doesn't match: %d", l)
	}
	if p.Name, err = d.DecodeString(); err != nil {
		return err
	}
	if p.Owner, err = d.DecodeString(); err != nil {
		return err
	}
	if p.Description, err = d.DecodeString(); err != nil {
		return err
	}
	if l, err = d.DecodeArrayLen(); err != nil {
		return err
	}
	p.Options = make([]string, max(l, 0))
	for i := range p.Options {
		if p.Options[i], err = d.DecodeString(); err != nil {
			return err
		}
	}
	if p.ClosingTime, err = d.DecodeInt64(); err != nil {
		return err
	}
	if l, err = d.DecodeArrayLen(); err != nil {
		return err
	}
	p.Voters = make([]VoterModel, max(l, 0))
	for i := range p.Voters {
		if err = p.Voters[i].DecodeMsgpack(d); err != nil {
			return err
		}
	}
	if l, err = d.DecodeArrayLen(); err != nil {
		return err
	}
	p.VotingDetails = make([]VotingDetailModel, max(l, 0))
	for i := range p.VotingDetails {
		if err = p.VotingDetails[i].DecodeMsgpack(d); err != nil {
			return err
		}
	}
	return nil
}

func (v *VoterModel) EncodeMsgpack(e *msgpack.Encoder) error {
	if err := e.EncodeArrayLen(voterModelFields); err != nil {
		return err
	}
	if err := e.EncodeString(v.Name); err != nil {
		return err
	}
	if err := e.EncodeString(v.Voter); err != nil {
		return err
	}
	return e.EncodeFloat64(v.Contribution)
}

func (v *VoterModel) DecodeMsgpack(d *msgpack.Decoder) error {
	var err error
	var l int
	if l, err = d.DecodeArrayLen(); err != nil {
		return err
	}
	if l != voterModelFields {
		return fmt.Errorf("voter array len doesn't match: %d", l)
	}
	if v.Name, err = d.DecodeString(); err != nil {
		return err
	}
	if v.Voter, err = d.DecodeString(); err != nil {
		return err
	}
	if v.Contribution, err = d.DecodeFloat64(); err != nil {
		return err
	}
	return nil
}

func (vd *VotingDetailModel) EncodeMsgpack(e *msgpack.Encoder) error {
	if err := e.EncodeArrayLen(votingDetailModelFields); err != nil {
		return err
	}
	if err := e.EncodeString(vd.Name); err != nil {
		return err
	}
	if err := e.EncodeInt(int64(vd.Option)); err != nil {
		return err
	}
	return e.EncodeFloat64(vd.Contribution)
}

func (vd *VotingDetailModel) DecodeMsgpack(d *msgpack.Decoder) error {
	var err error
	var l int
	if l, err = d.DecodeArrayLen(); err != nil {
		return err
	}
	if l != votingDetailModelFields {
		return fmt.Errorf("voting detail array len doesn't match: %d", l)
	}
	if vd.Name, err = d.DecodeString(); err != nil {
		return err
	}
	if vd.Option, err = d.DecodeInt(); err != nil {
		return err
	}
	if vd.Contribution, err = d.DecodeFloat64(); err != nil {
		return err
	}
	return nil
}
