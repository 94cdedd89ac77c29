// Package session holds the per-server working state: an editable copy of the
// knowledge base, the symptom checklist and the consultation history.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wagnerlima/psytech-mcp/internal/engine"
	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/metrics"
	"github.com/wagnerlima/psytech-mcp/internal/models"
	"github.com/wagnerlima/psytech-mcp/internal/storage"
)

// ErrHistoryDisabled is returned by history lookups when no store is attached.
var ErrHistoryDisabled = errors.New("consultation history is disabled")

const defaultHistoryLimit = 50

// Options configures a Session. Zero values are usable.
type Options struct {
	Knowledge    []knowledge.Option
	Engine       *engine.Engine
	History      *storage.HistoryStore // nil disables history
	HistoryLimit int
	Logger       *zap.Logger
}

// Session owns a working knowledge base and the current symptom selection.
// It is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	id       string
	kb       *knowledge.Base
	selected []string

	engine       *engine.Engine
	history      *storage.HistoryStore
	historyLimit int
	logger       *zap.Logger
}

// New loads doc into a fresh working base. doc itself is never modified.
func New(doc *models.Document, opts Options) (*Session, error) {
	kb, err := knowledge.Load(doc, opts.Knowledge...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:           uuid.New().String(),
		kb:           kb,
		selected:     []string{},
		engine:       opts.Engine,
		history:      opts.History,
		historyLimit: opts.HistoryLimit,
		logger:       opts.Logger,
	}
	if s.engine == nil {
		s.engine = engine.New(kb.DiagnosisPrefix())
	}
	if s.historyLimit <= 0 {
		s.historyLimit = defaultHistoryLimit
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))
	return s, nil
}

// ID returns the session identifier stamped on consultations.
func (s *Session) ID() string {
	return s.id
}

// KnowledgeBase returns a snapshot copy of the working base.
func (s *Session) KnowledgeBase() *knowledge.Base {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Clone()
}

// Symptoms lists the current symptoms in insertion order.
func (s *Session) Symptoms() []models.Symptom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Symptoms()
}

// Rules lists the current rules in declaration order.
func (s *Session) Rules() []models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kb.Rules()
}

// AddSymptom appends a symptom to the working base.
func (s *Session) AddSymptom(text string) (models.Symptom, error) {
	s.mu.Lock()
	sym, err := s.kb.AddSymptom(text)
	s.mu.Unlock()

	if err != nil {
		metrics.KnowledgeMutation("symptom", outcomeOf(err))
		s.logger.Debug("add symptom rejected", zap.Error(err))
		return models.Symptom{}, err
	}
	metrics.KnowledgeMutation("symptom", metrics.OutcomeOK)
	s.logger.Info("symptom added", zap.String("id", sym.ID), zap.String("text", sym.Text))
	return sym, nil
}

// AddRule appends a rule to the working base. See knowledge.Base.AddRule for
// confidence handling.
func (s *Session) AddRule(premises []string, conclusion string, confidence any) (models.Rule, error) {
	s.mu.Lock()
	r, err := s.kb.AddRule(premises, conclusion, confidence)
	s.mu.Unlock()

	if err != nil {
		metrics.KnowledgeMutation("rule", outcomeOf(err))
		s.logger.Debug("add rule rejected", zap.Error(err))
		return models.Rule{}, err
	}
	metrics.KnowledgeMutation("rule", metrics.OutcomeOK)
	s.logger.Info("rule added",
		zap.String("id", r.ID),
		zap.Strings("if", r.If),
		zap.String("then", r.Then.ID),
		zap.Float64("confidence", r.Confidence),
	)
	return r, nil
}

// Toggle flips a symptom in the selection and reports whether it is now
// selected.
func (s *Session) Toggle(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.kb.HasSymptom(id) {
		return false, unknownSymptom(id)
	}
	for i, sel := range s.selected {
		if sel == id {
			s.selected = append(s.selected[:i:i], s.selected[i+1:]...)
			return false, nil
		}
	}
	s.selected = append(s.selected, id)
	return true, nil
}

// Select replaces the selection. Duplicates are dropped; the selection is
// left unchanged if any id is unknown.
func (s *Session) Select(ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !s.kb.HasSymptom(id) {
			return nil, unknownSymptom(id)
		}
		if !seen[id] {
			seen[id] = true
			next = append(next, id)
		}
	}
	s.selected = next
	return append([]string{}, next...), nil
}

// Selected returns the current selection in the order symptoms were picked.
func (s *Session) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.selected...)
}

// Reset clears the selection. The knowledge base is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = []string{}
}

// Diagnose runs the engine over ids, or over the current selection when ids
// is empty, and records the consultation when history is enabled.
func (s *Session) Diagnose(ctx context.Context, ids []string) (*models.Consultation, error) {
	s.mu.RLock()
	if len(ids) == 0 {
		ids = append([]string{}, s.selected...)
	}
	for _, id := range ids {
		if !s.kb.HasFact(id) {
			s.mu.RUnlock()
			return nil, &knowledge.ValidationError{Field: "symptoms", Reason: fmt.Sprintf("unknown fact id %q", id)}
		}
	}
	rules := s.kb.Rules()
	// Every fact the engine can produce is an input id or a rule conclusion.
	labels := s.kb.Labels(candidateFacts(ids, rules))
	s.mu.RUnlock()

	start := time.Now()
	result := s.engine.Infer(ids, rules)
	metrics.ObserveInference(result)

	c := &models.Consultation{
		ID:        uuid.New().String(),
		SessionID: s.id,
		Selected:  append([]string{}, ids...),
		Result:    result,
		Labels:    factLabels(labels, result.Facts),
		CreatedAt: time.Now().UTC(),
	}

	s.logger.Info("diagnosis complete",
		zap.String("consultation_id", c.ID),
		zap.Strings("selected", ids),
		zap.Int("passes", result.Passes),
		zap.Int("diagnoses", len(result.Diagnoses)),
		zap.Duration("elapsed", time.Since(start)),
	)

	if s.history != nil {
		if err := s.history.Record(ctx, c); err != nil {
			// The result is still valid without a history entry.
			s.logger.Warn("failed to record consultation", zap.String("consultation_id", c.ID), zap.Error(err))
		}
	}
	return c, nil
}

// History lists recent consultations of this session, newest first.
// limit <= 0 uses the configured default.
func (s *Session) History(ctx context.Context, limit int) ([]models.Consultation, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.history.List(ctx, s.id, limit)
}

// Consultation loads one recorded consultation.
func (s *Session) Consultation(ctx context.Context, id string) (*models.Consultation, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}

// SearchHistory full-text searches the diagnosis text of recorded
// consultations.
func (s *Session) SearchHistory(ctx context.Context, query string) ([]models.Consultation, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Search(ctx, query, s.historyLimit)
}

// Close releases the history store, if any.
func (s *Session) Close() error {
	if s.history == nil {
		return nil
	}
	return s.history.Close()
}

func candidateFacts(ids []string, rules []models.Rule) []string {
	out := make([]string, 0, len(ids)+len(rules))
	out = append(out, ids...)
	for _, r := range rules {
		out = append(out, r.Then.ID)
	}
	return out
}

func factLabels(labels map[string]string, facts []string) map[string]string {
	out := make(map[string]string, len(facts))
	for _, f := range facts {
		out[f] = labels[f]
	}
	return out
}

func unknownSymptom(id string) error {
	return &knowledge.ValidationError{Field: "symptom", Reason: fmt.Sprintf("unknown symptom id %q", id)}
}

func outcomeOf(err error) string {
	if knowledge.IsValidation(err) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
