package governance

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Operator Surveys ───────────────────────────────────────────────────────

// SurveyOutcome is returned by ConcludeOperatorSurvey.
type SurveyOutcome struct {
	Survey      *domain.OperatorSurvey
	Impeachment *domain.Impeachment // nil unless support fell to the threshold
	Spawned     bool                // false when an active impeachment was reused
}

// ConductOperatorSurvey opens a survey on daoID's current operator.
func (e *Engine) ConductOperatorSurvey(daoID string) (*domain.OperatorSurvey, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return nil, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	sv := &domain.OperatorSurvey{
		ID:          uuid.NewString(),
		DAOID:       daoID,
		OperatorID:  s.ds.dao.OperatorID,
		Status:      domain.SurveyActive,
		Voters:      make(map[string]domain.SurveyChoice),
		SupportRate: 1,
		CreatedAt:   s.now,
	}
	s.ds.surveys[sv.ID] = sv
	s.ds.surveyOrder = append(s.ds.surveyOrder, sv.ID)
	return commitSurvey(s, sv), nil
}

// VoteOperatorSurvey records one member's stance. One ballot per member.
func (e *Engine) VoteOperatorSurvey(daoID, surveyID, voterID string, choice domain.SurveyChoice) (*domain.OperatorSurvey, error) {
	if !choice.Valid() {
		return nil, domain.InvalidField("choice", "unknown survey answer %q", choice)
	}
	s, sv, err := e.lockSurvey(daoID, surveyID)
	if err != nil {
		return nil, err
	}
	defer s.ds.mu.Unlock()

	if !s.ds.isMember(voterID) {
		return nil, fmt.Errorf("survey %s by %s: %w", surveyID, voterID, domain.ErrNotAMember)
	}
	if sv.Status != domain.SurveyActive {
		return nil, fmt.Errorf("survey %s (%s): %w", surveyID, sv.Status, domain.ErrInvalidStateTransition)
	}
	if _, voted := sv.Voters[voterID]; voted {
		return nil, fmt.Errorf("survey %s by %s: %w", surveyID, voterID, domain.ErrAlreadyVoted)
	}

	sv.Voters[voterID] = choice
	switch choice {
	case domain.SurveySupport:
		sv.Votes.Support++
	case domain.SurveyNeutral:
		sv.Votes.Neutral++
	case domain.SurveyOppose:
		sv.Votes.Oppose++
	}
	sv.SupportRate = SupportRate(sv.Votes)
	return commitSurvey(s, sv), nil
}

// ConcludeOperatorSurvey closes an active survey. Support at or below the
// impeachment threshold opens an impeachment against the current operator,
// reusing one that is already active against the same operator.
func (e *Engine) ConcludeOperatorSurvey(daoID, surveyID string) (SurveyOutcome, error) {
	s, sv, err := e.lockSurvey(daoID, surveyID)
	if err != nil {
		return SurveyOutcome{}, err
	}
	defer s.ds.mu.Unlock()

	if sv.Status != domain.SurveyActive {
		return SurveyOutcome{}, fmt.Errorf("conclude survey %s (%s): %w", surveyID, sv.Status, domain.ErrInvalidStateTransition)
	}

	sv.Status = domain.SurveyConcluded
	sv.SupportRate = SupportRate(sv.Votes)
	sv.ConcludedAt = s.now

	out := SurveyOutcome{}
	if e.config.triggersImpeachment(sv.Votes) {
		target := s.ds.dao.OperatorID
		im := s.ds.activeImpeachmentOf(target)
		if im == nil {
			im = &domain.Impeachment{
				ID:               uuid.NewString(),
				DAOID:            daoID,
				TargetOperatorID: target,
				SurveyID:         sv.ID,
				Status:           domain.ImpeachmentActive,
				Voters:           make(map[string]domain.VoteChoice),
				CreatedAt:        s.now,
			}
			s.ds.impeachments[im.ID] = im
			s.ds.impeachmentOrder = append(s.ds.impeachmentOrder, im.ID)
			out.Spawned = true
		}
		sv.ImpeachmentID = im.ID
		out.Impeachment = commitImpeachment(s, im)
	}
	out.Survey = commitSurvey(s, sv)
	return out, nil
}

func (ds *daoState) activeImpeachmentOf(target string) *domain.Impeachment {
	for _, id := range ds.impeachmentOrder {
		im := ds.impeachments[id]
		if im.Status == domain.ImpeachmentActive && im.TargetOperatorID == target {
			return im
		}
	}
	return nil
}

// Survey returns one survey.
func (e *Engine) Survey(daoID, surveyID string) (*domain.OperatorSurvey, error) {
	s, sv, err := e.lockSurvey(daoID, surveyID)
	if err != nil {
		return nil, err
	}
	defer s.ds.mu.Unlock()
	return sv.Clone(), nil
}

// Surveys lists daoID's surveys in creation order.
func (e *Engine) Surveys(daoID string) ([]*domain.OperatorSurvey, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return nil, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	out := make([]*domain.OperatorSurvey, 0, len(s.ds.surveyOrder))
	for _, id := range s.ds.surveyOrder {
		out = append(out, s.ds.surveys[id].Clone())
	}
	return out, nil
}

func (e *Engine) lockSurvey(daoID, surveyID string) (session, *domain.OperatorSurvey, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return session{}, nil, err
	}
	s.ds.mu.Lock()
	sv, ok := s.ds.surveys[surveyID]
	if !ok {
		s.ds.mu.Unlock()
		return session{}, nil, fmt.Errorf("survey %s in %s: %w", surveyID, daoID, domain.ErrUnknownEntity)
	}
	return s, sv, nil
}

func commitSurvey(s session, sv *domain.OperatorSurvey) *domain.OperatorSurvey {
	stored := sv.Clone()
	s.persist(func(r domain.GovernanceRepository) error { return r.PutSurvey(*stored) })
	return sv.Clone()
}

// ─── Impeachment ────────────────────────────────────────────────────────────

// VoteImpeachment records one member's approve/reject ballot.
func (e *Engine) VoteImpeachment(daoID, impeachmentID, voterID string, choice domain.VoteChoice) (*domain.Impeachment, error) {
	if choice != domain.VoteApprove && choice != domain.VoteReject {
		return nil, domain.InvalidField("choice", "impeachment takes approve or reject, got %q", choice)
	}
	s, im, err := e.lockImpeachment(daoID, impeachmentID)
	if err != nil {
		return nil, err
	}
	defer s.ds.mu.Unlock()

	if !s.ds.isMember(voterID) {
		return nil, fmt.Errorf("impeachment %s by %s: %w", impeachmentID, voterID, domain.ErrNotAMember)
	}
	if im.Status != domain.ImpeachmentActive {
		return nil, fmt.Errorf("impeachment %s (%s): %w", impeachmentID, im.Status, domain.ErrInvalidStateTransition)
	}
	if _, voted := im.Voters[voterID]; voted {
		return nil, fmt.Errorf("impeachment %s by %s: %w", impeachmentID, voterID, domain.ErrAlreadyVoted)
	}

	im.Voters[voterID] = choice
	if choice == domain.VoteApprove {
		im.Votes.Approve++
	} else {
		im.Votes.Reject++
	}
	return commitImpeachment(s, im), nil
}

// ConcludeImpeachment settles an active impeachment once. It is upheld when
// at least ⌈40%·members⌉ members voted and approvals outnumber rejections;
// the successor, a member other than the target, then becomes operator.
// Otherwise it is dismissed and the successor is ignored.
func (e *Engine) ConcludeImpeachment(daoID, impeachmentID, successorID string) (*domain.Impeachment, error) {
	s, im, err := e.lockImpeachment(daoID, impeachmentID)
	if err != nil {
		return nil, err
	}
	defer s.ds.mu.Unlock()

	if im.Status != domain.ImpeachmentActive {
		return nil, fmt.Errorf("conclude impeachment %s (%s): %w", impeachmentID, im.Status, domain.ErrInvalidStateTransition)
	}

	ballots := im.Votes.Approve + im.Votes.Reject
	upheld := ballots >= e.config.ImpeachmentQuorum(len(s.ds.members)) && im.Votes.Approve > im.Votes.Reject

	if upheld {
		switch {
		case successorID == "":
			return nil, domain.RequiredField("successorId")
		case successorID == im.TargetOperatorID:
			return nil, domain.InvalidField("successorId", "must differ from the removed operator")
		case !s.ds.isMember(successorID):
			return nil, fmt.Errorf("successor %s: %w", successorID, domain.ErrNotAMember)
		}
		im.Status = domain.ImpeachmentUpheld
		im.SuccessorID = successorID
		if s.ds.dao.OperatorID == im.TargetOperatorID {
			s.ds.dao.OperatorID = successorID
			view := s.ds.view()
			s.persist(func(r domain.GovernanceRepository) error { return r.PutDAO(view) })
		}
	} else {
		im.Status = domain.ImpeachmentDismissed
	}
	im.ConcludedAt = s.now
	return commitImpeachment(s, im), nil
}

// Impeachment returns one impeachment.
func (e *Engine) Impeachment(daoID, impeachmentID string) (*domain.Impeachment, error) {
	s, im, err := e.lockImpeachment(daoID, impeachmentID)
	if err != nil {
		return nil, err
	}
	defer s.ds.mu.Unlock()
	return im.Clone(), nil
}

// Impeachments lists daoID's impeachments in creation order.
func (e *Engine) Impeachments(daoID string) ([]*domain.Impeachment, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return nil, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	out := make([]*domain.Impeachment, 0, len(s.ds.impeachmentOrder))
	for _, id := range s.ds.impeachmentOrder {
		out = append(out, s.ds.impeachments[id].Clone())
	}
	return out, nil
}

func (e *Engine) lockImpeachment(daoID, impeachmentID string) (session, *domain.Impeachment, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return session{}, nil, err
	}
	s.ds.mu.Lock()
	im, ok := s.ds.impeachments[impeachmentID]
	if !ok {
		s.ds.mu.Unlock()
		return session{}, nil, fmt.Errorf("impeachment %s in %s: %w", impeachmentID, daoID, domain.ErrUnknownEntity)
	}
	return s, im, nil
}

func commitImpeachment(s session, im *domain.Impeachment) *domain.Impeachment {
	stored := im.Clone()
	s.persist(func(r domain.GovernanceRepository) error { return r.PutImpeachment(*stored) })
	return im.Clone()
}
