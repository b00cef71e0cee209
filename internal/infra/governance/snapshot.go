package governance

import (
	"sort"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Snapshot & Restore ─────────────────────────────────────────────────────

// Snapshot copies every DAO and its records.
func (e *Engine) Snapshot() domain.GovernanceSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var snap domain.GovernanceSnapshot
	for _, ds := range e.daos {
		ds.mu.Lock()
		snap.DAOs = append(snap.DAOs, ds.view())
		for _, id := range ds.proposalOrder {
			snap.Proposals = append(snap.Proposals, *ds.proposals[id].Clone())
		}
		for _, id := range ds.surveyOrder {
			snap.Surveys = append(snap.Surveys, *ds.surveys[id].Clone())
		}
		for _, id := range ds.impeachmentOrder {
			snap.Impeachments = append(snap.Impeachments, *ds.impeachments[id].Clone())
		}
		ds.mu.Unlock()
	}
	return snap
}

// Restore replaces the engine state with snap. Records whose DAO is
// missing from snap.DAOs are dropped.
func (e *Engine) Restore(snap domain.GovernanceSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.daos = make(map[string]*daoState, len(snap.DAOs))
	for _, d := range snap.DAOs {
		ds := newDAOState(d)
		ds.dao.Members = nil
		for _, m := range d.Members {
			ds.members[m] = struct{}{}
		}
		e.daos[d.ID] = ds
	}

	proposals := append([]domain.Proposal(nil), snap.Proposals...)
	sort.SliceStable(proposals, func(i, j int) bool { return proposals[i].CreatedAt.Before(proposals[j].CreatedAt) })
	for _, p := range proposals {
		ds, ok := e.daos[p.DAOID]
		if !ok {
			continue
		}
		cp := p.Clone()
		ds.proposals[cp.ID] = cp
		ds.proposalOrder = append(ds.proposalOrder, cp.ID)
	}

	surveys := append([]domain.OperatorSurvey(nil), snap.Surveys...)
	sort.SliceStable(surveys, func(i, j int) bool { return surveys[i].CreatedAt.Before(surveys[j].CreatedAt) })
	for _, sv := range surveys {
		ds, ok := e.daos[sv.DAOID]
		if !ok {
			continue
		}
		cp := sv.Clone()
		ds.surveys[cp.ID] = cp
		ds.surveyOrder = append(ds.surveyOrder, cp.ID)
	}

	impeachments := append([]domain.Impeachment(nil), snap.Impeachments...)
	sort.SliceStable(impeachments, func(i, j int) bool { return impeachments[i].CreatedAt.Before(impeachments[j].CreatedAt) })
	for _, im := range impeachments {
		ds, ok := e.daos[im.DAOID]
		if !ok {
			continue
		}
		cp := im.Clone()
		ds.impeachments[cp.ID] = cp
		ds.impeachmentOrder = append(ds.impeachmentOrder, cp.ID)
	}
}
