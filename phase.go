package claimpay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/claimpay/database"
	"github.com/jerry-enebeli/claimpay/internal/cache"
	"github.com/jerry-enebeli/claimpay/model"
)

// PhaseRuleSource loads the phase event rules of an event code.
type PhaseRuleSource interface {
	GetPhaseEventRules(ctx context.Context, eventCode int) ([]model.PhaseEventRule, error)
}

// cachedRuleSource keeps phase event rules in the cache for ttl.
type cachedRuleSource struct {
	source PhaseRuleSource
	cache  cache.Cache
	ttl    time.Duration
}

func newCachedRuleSource(source PhaseRuleSource, c cache.Cache, ttl time.Duration) *cachedRuleSource {
	return &cachedRuleSource{source: source, cache: c, ttl: ttl}
}

func phaseRulesCacheKey(eventCode int) string {
	return fmt.Sprintf("phase_rules:%d", eventCode)
}

func (s *cachedRuleSource) GetPhaseEventRules(ctx context.Context, eventCode int) ([]model.PhaseEventRule, error) {
	key := phaseRulesCacheKey(eventCode)

	var rules []model.PhaseEventRule
	err := s.cache.Get(ctx, key, &rules)
	if err == nil {
		// cached times come back in the local zone
		for i := range rules {
			rules[i].EffectiveFrom = rules[i].EffectiveFrom.UTC()
			rules[i].EffectiveTo = rules[i].EffectiveTo.UTC()
		}
		return rules, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logrus.Warnf("phase rule cache read failed for %s: %v", key, err)
	}

	rules, err = s.source.GetPhaseEventRules(ctx, eventCode)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, rules, s.ttl); err != nil {
		logrus.Warnf("phase rule cache write failed for %s: %v", key, err)
	}
	return rules, nil
}

// PhaseTransition reports what one matching rule did.
type PhaseTransition struct {
	Rule    model.PhaseEventRule
	Applied bool
	Phase   *model.Phase
	Reason  string
}

// PhaseStateMachine opens and closes claim phases in response to events.
type PhaseStateMachine struct {
	datasource database.IDataSource
	rules      PhaseRuleSource
}

func NewPhaseStateMachine(datasource database.IDataSource, rules PhaseRuleSource) *PhaseStateMachine {
	if rules == nil {
		rules = datasource
	}
	return &PhaseStateMachine{datasource: datasource, rules: rules}
}

// Advance applies every rule of eventCode effective on businessDate to the phases of protocol.
// Opening an already open phase and closing a phase that is not open are skipped.
// All writes go through tx.
func (m *PhaseStateMachine) Advance(ctx context.Context, tx *sql.Tx, protocol model.ProtocolKey, eventCode int, businessDate time.Time, operatorID string) ([]PhaseTransition, error) {
	rules, err := m.rules.GetPhaseEventRules(ctx, eventCode)
	if err != nil {
		return nil, err
	}

	date := model.DateOnly(businessDate)
	var transitions []PhaseTransition
	for _, rule := range rules {
		if rule.EventCode != eventCode || !rule.Covers(date) {
			continue
		}

		var transition PhaseTransition
		switch rule.Action {
		case model.PhaseActionOpen:
			transition, err = m.open(ctx, tx, protocol, rule, date, operatorID)
		case model.PhaseActionClose:
			transition, err = m.close(ctx, tx, protocol, rule, date, operatorID)
		default:
			err = fmt.Errorf("phase rule %d has unknown action %q", rule.RuleID, rule.Action)
		}
		if err != nil {
			return transitions, err
		}

		if !transition.Applied {
			logrus.WithFields(logrus.Fields{
				"protocol":   protocol.String(),
				"phase_code": rule.PhaseCode,
				"event_code": eventCode,
				"action":     rule.Action,
			}).Info(transition.Reason)
		}
		transitions = append(transitions, transition)
	}
	return transitions, nil
}

func (m *PhaseStateMachine) open(ctx context.Context, tx *sql.Tx, protocol model.ProtocolKey, rule model.PhaseEventRule, date time.Time, operatorID string) (PhaseTransition, error) {
	existing, err := m.datasource.GetOpenPhase(ctx, tx, protocol, rule.PhaseCode, rule.EventCode)
	if err != nil {
		return PhaseTransition{}, err
	}
	if existing != nil {
		return PhaseTransition{Rule: rule, Phase: existing, Reason: "phase already open, skipping"}, nil
	}

	phase := &model.Phase{
		Protocol:  protocol,
		PhaseCode: rule.PhaseCode,
		EventCode: rule.EventCode,
		OpenedAt:  date,
		ClosedAt:  model.PhaseOpenSentinel,
		OpenedBy:  operatorID,
	}
	if err := m.datasource.OpenPhase(ctx, tx, phase); err != nil {
		return PhaseTransition{}, err
	}
	return PhaseTransition{Rule: rule, Applied: true, Phase: phase}, nil
}

func (m *PhaseStateMachine) close(ctx context.Context, tx *sql.Tx, protocol model.ProtocolKey, rule model.PhaseEventRule, date time.Time, operatorID string) (PhaseTransition, error) {
	existing, err := m.datasource.GetOpenPhase(ctx, tx, protocol, rule.PhaseCode, rule.EventCode)
	if err != nil {
		return PhaseTransition{}, err
	}
	if existing == nil {
		return PhaseTransition{Rule: rule, Reason: "no open phase to close, skipping"}, nil
	}

	if err := m.datasource.ClosePhase(ctx, tx, existing, date, operatorID); err != nil {
		return PhaseTransition{}, err
	}
	return PhaseTransition{Rule: rule, Applied: true, Phase: existing}, nil
}
