// Package protocol composes the contribution ledger, the governance engine
// and the P-token allocator into the operations a host exposes.
//
//	submit ──▶ cvcm.Ledger ──verify (operator)──▶ stream ──▶ DAO membership
//	claim  ──▶ accrual cursor ──▶ B MINT intent
//	issue  ──▶ window scores ──▶ CAPM ladder ──▶ P MINT intents
//	stake / endorse / vote ──P balance gate──▶ governance.Engine
//	impeachment upheld ──▶ burn all P of the removed operator
//
// The components never call each other. Every token movement is published
// to the IntentSink after the component that made it has committed, in the
// order the components returned them.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/cvcm"
	"github.com/baekya-protocol/baekya/internal/infra/emission"
	"github.com/baekya-protocol/baekya/internal/infra/governance"
	"github.com/baekya-protocol/baekya/internal/infra/logger"
	"github.com/baekya-protocol/baekya/internal/infra/observability"
	"github.com/baekya-protocol/baekya/internal/infra/ptoken"
)

// SystemID owns the default DAOs until an initial operator takes over.
const SystemID = "did:baekya:system000000000000000000000000000000000"

// Config controls the service.
type Config struct {
	SystemID      string
	OperatorGrant domain.Amount // P granted per default DAO to the initial operator
	MinGuarantee  domain.Amount // CAPM amount of the last rank
	Emission      emission.Config
	Governance    governance.EngineConfig
	Tracing       observability.TracerConfig
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		SystemID:      SystemID,
		OperatorGrant: domain.Tokens(30),
		MinGuarantee:  ptoken.DefaultMinGuarantee,
		Emission:      emission.DefaultConfig(),
		Governance:    governance.DefaultEngineConfig(),
		Tracing:       observability.DefaultTracerConfig(),
	}
}

// Store persists all three components and restores them at startup.
// *sqlite.DB implements it.
type Store interface {
	domain.ContributionRepository
	domain.GovernanceRepository
	domain.BalanceLedger
	domain.ProfileStore
	LoadLedger() (domain.LedgerSnapshot, error)
	LoadGovernance() (domain.GovernanceSnapshot, error)
	LoadBalances() (domain.BalanceSnapshot, error)
	LoadProfiles() (map[string]domain.Profile, error)
}

// ─── Service ────────────────────────────────────────────────────────────────

// Service is the protocol core seen from a host. Thread-safe; every
// component serialises its own state.
type Service struct {
	config   Config
	ledger   *cvcm.Ledger
	gov      *governance.Engine
	alloc    *ptoken.Allocator
	identity domain.IdentityVerifier
	sink     domain.IntentSink
	tracer   *observability.Tracer
	log      *logrus.Entry

	mu       sync.RWMutex
	defaults map[string]string // default DAO name → DAO ID
	profiles     map[string]domain.Profile
	profileStore domain.ProfileStore

	issueMu sync.Mutex // serialises RunIssuance so a window is minted once
}

// New creates a service with empty components. A nil identity verifier
// accepts every non-empty identity; a nil sink discards intents.
func New(cfg Config, identity domain.IdentityVerifier, sink domain.IntentSink) *Service {
	if cfg.SystemID == "" {
		cfg.SystemID = SystemID
	}
	if identity == nil {
		identity = anyIdentity{}
	}
	if sink == nil {
		sink = discardSink{}
	}
	return &Service{
		config:   cfg,
		ledger:   cvcm.NewLedger(emission.NewCalculator(cfg.Emission)),
		gov:      governance.NewEngine(cfg.Governance),
		alloc:    ptoken.NewAllocator(),
		identity: identity,
		sink:     sink,
		tracer:   observability.NewTracer(cfg.Tracing),
		log:      logger.NewSublogger("protocol"),
		defaults: make(map[string]string),
		profiles: make(map[string]domain.Profile),
	}
}

// SetClock replaces the time source of every component.
func (s *Service) SetClock(now func() time.Time) {
	s.ledger.SetClock(now)
	s.gov.SetClock(now)
	s.alloc.SetClock(now)
}

// AttachStore restores the components from store and writes every later
// commit through it. Call before serving requests.
func (s *Service) AttachStore(store Store) error {
	ledger, err := store.LoadLedger()
	if err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	gov, err := store.LoadGovernance()
	if err != nil {
		return fmt.Errorf("restore governance: %w", err)
	}
	balances, err := store.LoadBalances()
	if err != nil {
		return fmt.Errorf("restore balances: %w", err)
	}
	profiles, err := store.LoadProfiles()
	if err != nil {
		return fmt.Errorf("restore profiles: %w", err)
	}

	s.ledger.Restore(ledger)
	s.gov.Restore(gov)
	s.alloc.Restore(balances)

	s.ledger.SetRepository(store, s.persistFailed("cvcm"))
	s.gov.SetRepository(store, s.persistFailed("governance"))
	s.alloc.SetRepository(store, s.persistFailed("ptoken"))

	s.mu.Lock()
	for id, p := range profiles {
		s.profiles[id] = p
	}
	s.profileStore = store
	s.mu.Unlock()

	observability.DAOs.Set(float64(len(s.gov.DAOs())))
	s.refreshSupply()
	s.log.WithFields(logrus.Fields{
		"daos":          len(gov.DAOs),
		"contributions": len(ledger.Contributions),
		"holders":       len(balances.Balances),
		"profiles":      len(profiles),
	}).Info("Restored protocol state")
	return nil
}

// Ledger exposes the contribution ledger for read-only queries.
func (s *Service) Ledger() *cvcm.Ledger { return s.ledger }

// Governance exposes the governance engine for read-only queries.
func (s *Service) Governance() *governance.Engine { return s.gov }

// Allocator exposes the P-token allocator for read-only queries.
func (s *Service) Allocator() *ptoken.Allocator { return s.alloc }

// DAOs returns every registered DAO.
func (s *Service) DAOs() []domain.DAO { return s.gov.DAOs() }

// Tracer exposes recent operation spans.
func (s *Service) Tracer() *observability.Tracer { return s.tracer }

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Service) persistFailed(component string) func(error) {
	return func(err error) {
		observability.PersistErrors.WithLabelValues(component).Inc()
		s.log.WithError(err).WithField("component", component).Error("Store write failed")
	}
}

// publish hands intents to the sink. Zero-amount intents move nothing and
// are dropped. A sink failure does not undo the commit.
func (s *Service) publish(intents ...domain.LedgerIntent) {
	for _, in := range intents {
		if in.Amount == 0 {
			continue
		}
		if err := s.sink.Publish(in); err != nil {
			observability.IntentPublishErrors.Inc()
			s.log.WithError(err).WithFields(logrus.Fields{
				"kind":    in.Kind,
				"subject": in.SubjectID,
				"token":   in.Token,
				"amount":  in.Amount,
			}).Error("Failed to publish ledger intent")
			continue
		}
		observability.IntentsPublished.WithLabelValues(string(in.Kind), string(in.Token)).Inc()
	}
}

func (s *Service) refreshSupply() {
	observability.PTokenSupply.Set(s.alloc.NetworkStats().Circulating.Float64())
}

// checkIdentity rejects identities the verifier does not know.
func (s *Service) checkIdentity(field, id string) error {
	if id == "" {
		return domain.RequiredField(field)
	}
	if !s.identity.IsValidIdentity(id) {
		return domain.InvalidField(field, "unknown identity %s", id)
	}
	return nil
}

// requireOperator fails with ErrNotAuthorized unless id operates daoID.
func (s *Service) requireOperator(daoID, id string) error {
	if _, err := s.gov.DAO(daoID); err != nil {
		return err
	}
	if !s.gov.IsOperator(daoID, id) {
		return fmt.Errorf("%s is not the operator of %s: %w", id, daoID, domain.ErrNotAuthorized)
	}
	return nil
}

// requireBalance fails with ErrInsufficientBalance when id holds less than
// amount P.
func (s *Service) requireBalance(id string, amount domain.Amount) error {
	if bal := s.alloc.Balance(id); bal < amount {
		return fmt.Errorf("%s holds %v P, needs %v: %w", id, bal, amount, domain.ErrInsufficientBalance)
	}
	return nil
}

func (s *Service) start(ctx context.Context, op string, attrs map[string]string) *observability.Span {
	return s.tracer.Start(ctx, op, attrs)
}

// ─── Collaborator Defaults ──────────────────────────────────────────────────

type anyIdentity struct{}

func (anyIdentity) IsValidIdentity(id string) bool { return id != "" }

type discardSink struct{}

func (discardSink) Publish(domain.LedgerIntent) error { return nil }

// isDuplicate reports whether err is a duplicate registration.
func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicateEntity)
}
