package protocol

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/observability"
)

// ─── Default DAOs ───────────────────────────────────────────────────────────

const (
	OperationsDAO  = "Operations DAO"
	DevelopmentDAO = "Development DAO"
	CommunityDAO   = "Community DAO"
	PoliticalDAO   = "Political DAO"
)

// ProposalFundingDCA is credited to a proposer whose proposal reaches a vote.
const ProposalFundingDCA = "proposal-funding-success"

type defaultDAO struct {
	config domain.DAOConfig
	dcas   []domain.DCA
}

var defaultDAOs = []defaultDAO{
	{
		config: domain.DAOConfig{Name: OperationsDAO, Purpose: "Protocol Operations Management",
			Description: "Keeps the protocol's infrastructure running"},
		dcas: []domain.DCA{
			{ID: "system-maintenance", Name: "System maintenance", Value: domain.Tokens(120),
				Criteria: "Maintenance work confirmed by the operator"},
		},
	},
	{
		config: domain.DAOConfig{Name: DevelopmentDAO, Purpose: "Protocol Development",
			Description: "Builds and reviews protocol code"},
		dcas: []domain.DCA{
			{ID: "pull-request", Name: "Pull request", Value: domain.Tokens(100),
				Criteria: "Pull request merged"},
			{ID: "bug-fix", Name: "Bug fix", Value: domain.Tokens(80),
				Criteria: "Fix merged and the issue closed"},
		},
	},
	{
		config: domain.DAOConfig{Name: CommunityDAO, Purpose: "Community Management",
			Description: "Grows and supports the community"},
		dcas: []domain.DCA{
			{ID: "content-creation", Name: "Content creation", Value: domain.Tokens(60),
				Criteria: "Content published on a community channel"},
		},
	},
	{
		config: domain.DAOConfig{Name: PoliticalDAO, Purpose: "Political Governance",
			Description: "Runs protocol-wide proposals"},
		dcas: []domain.DCA{
			{ID: ProposalFundingDCA, Name: "Proposal funding success", Value: domain.Tokens(20),
				Criteria: "Proposal entered voting", AutoVerified: true},
		},
	},
}

// Bootstrap creates the four default DAOs, owned by the system identity,
// with their DCA catalogues. DAOs and DCAs that already exist, e.g. after a
// restore, are kept.
func (s *Service) Bootstrap(ctx context.Context) ([]domain.DAO, error) {
	span := s.start(ctx, "bootstrap", nil)

	out := make([]domain.DAO, 0, len(defaultDAOs))
	for _, def := range defaultDAOs {
		dao, found := s.gov.FindDAO(def.config.Name)
		if !found {
			var err error
			if dao, err = s.gov.CreateDAO(s.config.SystemID, def.config); err != nil {
				span.End(err)
				return nil, fmt.Errorf("bootstrap %s: %w", def.config.Name, err)
			}
		}
		for _, dca := range def.dcas {
			if _, err := s.ledger.RegisterDCA(dao.ID, dca); err != nil && !isDuplicate(err) {
				span.End(err)
				return nil, fmt.Errorf("bootstrap %s/%s: %w", def.config.Name, dca.ID, err)
			}
		}

		s.mu.Lock()
		s.defaults[def.config.Name] = dao.ID
		s.mu.Unlock()
		out = append(out, dao)

		s.log.WithFields(logrus.Fields{"dao": dao.ID, "name": dao.Name, "existing": found}).Debug("Default DAO ready")
	}

	observability.DAOs.Set(float64(len(s.gov.DAOs())))
	span.End(nil)
	return out, nil
}

// DefaultDAO returns the ID of a bootstrapped DAO by name.
func (s *Service) DefaultDAO(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.defaults[name]
	return id, ok
}

// SetInitialOperator hands every default DAO still operated by the system
// identity to id and grants id the operator award in each. Fails when no
// DAO is left to hand over.
func (s *Service) SetInitialOperator(ctx context.Context, id string) ([]domain.LedgerIntent, error) {
	if err := s.checkIdentity("operatorId", id); err != nil {
		return nil, err
	}
	span := s.start(ctx, "set_initial_operator", map[string]string{"operator": id})

	var intents []domain.LedgerIntent
	handed := 0
	// Hand-overs already committed stay committed; their grants are
	// published even when a later DAO fails.
	fail := func(err error) ([]domain.LedgerIntent, error) {
		s.publish(intents...)
		span.End(err)
		return nil, err
	}
	for _, def := range defaultDAOs {
		daoID, ok := s.DefaultDAO(def.config.Name)
		if !ok {
			return fail(fmt.Errorf("%s not bootstrapped: %w", def.config.Name, domain.ErrUnknownEntity))
		}
		if !s.gov.IsOperator(daoID, s.config.SystemID) {
			continue
		}
		if _, err := s.gov.TransferOperator(daoID, id); err != nil {
			return fail(err)
		}
		handed++
		if s.config.OperatorGrant > 0 {
			intent, err := s.alloc.Grant(daoID, id, s.config.OperatorGrant, "initial-operator")
			if err != nil {
				return fail(err)
			}
			observability.PTokensMinted.WithLabelValues("grant").Add(intent.Amount.Float64())
			intents = append(intents, intent)
		}
		s.log.WithFields(logrus.Fields{"dao": daoID, "operator": id}).Info("Handed default DAO to initial operator")
	}
	if handed == 0 {
		return fail(fmt.Errorf("default DAOs already handed over: %w", domain.ErrInvalidStateTransition))
	}

	s.publish(intents...)
	s.refreshSupply()
	span.End(nil)
	return intents, nil
}
