package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wagnerlima/psytech-mcp/internal/engine"
	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/models"
	"github.com/wagnerlima/psytech-mcp/internal/storage"
)

func newSession(t *testing.T, withHistory bool) *Session {
	t.Helper()
	opts := Options{}
	if withHistory {
		h, err := storage.OpenHistory()
		require.NoError(t, err)
		opts.History = h
	}
	s, err := New(knowledge.DefaultDocument(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RejectsMalformedDocument(t *testing.T) {
	doc := &models.Document{
		Symptoms: []models.SymptomDoc{{ID: "s1", Text: "a"}, {ID: "s1", Text: "b"}},
	}
	_, err := New(doc, Options{})
	require.Error(t, err)
	assert.True(t, knowledge.IsMalformed(err))
}

func TestNew_SourceDocumentUntouched(t *testing.T) {
	doc := knowledge.DefaultDocument()
	s, err := New(doc, Options{})
	require.NoError(t, err)

	_, err = s.AddSymptom("Headache")
	require.NoError(t, err)
	_, err = s.AddRule([]string{"s1"}, "Something", 0.5)
	require.NoError(t, err)

	assert.Len(t, doc.Symptoms, 9)
	assert.Len(t, doc.Rules, 7)
}

func TestToggle(t *testing.T) {
	s := newSession(t, false)

	on, err := s.Toggle("s1")
	require.NoError(t, err)
	assert.True(t, on)

	on, err = s.Toggle("s3")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, []string{"s1", "s3"}, s.Selected())

	on, err = s.Toggle("s1")
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, []string{"s3"}, s.Selected())
}

func TestToggle_UnknownSymptom(t *testing.T) {
	s := newSession(t, false)

	_, err := s.Toggle("s99")
	require.Error(t, err)
	assert.True(t, knowledge.IsValidation(err))

	// Conclusions are facts but not selectable symptoms.
	_, err = s.Toggle("d_r1")
	assert.True(t, knowledge.IsValidation(err))
	assert.Empty(t, s.Selected())
}

func TestSelect(t *testing.T) {
	s := newSession(t, false)

	got, err := s.Select([]string{"s2", "s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, got)

	_, err = s.Select([]string{"s3", "nope"})
	require.Error(t, err)
	assert.Equal(t, []string{"s2", "s1"}, s.Selected(), "failed select keeps the old selection")
}

func TestReset(t *testing.T) {
	s := newSession(t, false)
	_, err := s.Select([]string{"s1", "s2"})
	require.NoError(t, err)
	_, err = s.AddSymptom("Headache")
	require.NoError(t, err)

	s.Reset()

	assert.Empty(t, s.Selected())
	assert.Len(t, s.Symptoms(), 10, "reset keeps knowledge base edits")
}

func TestSelected_ReturnsCopy(t *testing.T) {
	s := newSession(t, false)
	_, err := s.Select([]string{"s1"})
	require.NoError(t, err)

	sel := s.Selected()
	sel[0] = "mutated"
	assert.Equal(t, []string{"s1"}, s.Selected())
}

func TestDiagnose_UsesSelection(t *testing.T) {
	s := newSession(t, false)
	_, err := s.Select([]string{"s1", "s2"})
	require.NoError(t, err)

	c, err := s.Diagnose(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2"}, c.Selected)
	require.Len(t, c.Result.Diagnoses, 1)
	assert.Equal(t, "d_r1", c.Result.Diagnoses[0].DiagnosisID)
	assert.Equal(t, 0.8, c.Result.Diagnoses[0].Confidence)
	assert.Equal(t, "Frequently anxious", c.Labels["s1"])
	assert.Equal(t, "Generalized anxiety", c.Labels["d_r1"])
	assert.Equal(t, s.ID(), c.SessionID)
	assert.NotEmpty(t, c.ID)
}

func TestDiagnose_ExplicitIDsOverrideSelection(t *testing.T) {
	s := newSession(t, false)
	_, err := s.Select([]string{"s1", "s2"})
	require.NoError(t, err)

	c, err := s.Diagnose(context.Background(), []string{"s6", "s7", "s8"})
	require.NoError(t, err)

	assert.Equal(t, []string{"f_overload", "d_r4"}, c.Result.Inferred)
	require.Len(t, c.Result.Diagnoses, 1)
	assert.Equal(t, "Burnout", c.Result.Diagnoses[0].DiagnosisText)
	assert.Equal(t, "Cognitive overload", c.Labels["f_overload"])
	assert.Equal(t, []string{"s1", "s2"}, s.Selected(), "selection untouched")
}

func TestDiagnose_LabelsMatchFacts(t *testing.T) {
	s := newSession(t, false)
	_, err := s.AddRule([]string{"d_r4"}, "Needs leave", 0.5)
	require.NoError(t, err)

	c, err := s.Diagnose(context.Background(), []string{"s6", "s7", "s8"})
	require.NoError(t, err)

	kb := s.KnowledgeBase()
	require.Len(t, c.Labels, len(c.Result.Facts))
	for _, f := range c.Result.Facts {
		assert.Equal(t, kb.Label(f), c.Labels[f], f)
	}
	assert.Equal(t, "Needs leave", c.Labels["d_r8"])
}

func TestDiagnose_EmptySelection(t *testing.T) {
	s := newSession(t, false)

	c, err := s.Diagnose(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, c.Result.Facts)
	assert.Empty(t, c.Result.Diagnoses)
	assert.Equal(t, 1, c.Result.Passes)
}

func TestDiagnose_UnknownFact(t *testing.T) {
	s := newSession(t, false)
	_, err := s.Diagnose(context.Background(), []string{"s1", "ghost"})
	require.Error(t, err)
	assert.True(t, knowledge.IsValidation(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestDiagnose_IntermediateFactAccepted(t *testing.T) {
	s := newSession(t, false)
	c, err := s.Diagnose(context.Background(), []string{"f_overload", "s8"})
	require.NoError(t, err)
	require.Len(t, c.Result.Diagnoses, 1)
	assert.Equal(t, "d_r4", c.Result.Diagnoses[0].DiagnosisID)
}

func TestDiagnose_SeesAddedRules(t *testing.T) {
	s := newSession(t, false)

	sym, err := s.AddSymptom("Headache")
	require.NoError(t, err)
	assert.Equal(t, "s10", sym.ID)

	r, err := s.AddRule([]string{sym.ID}, "Tension headache", "0.9")
	require.NoError(t, err)
	assert.Equal(t, "r8", r.ID)
	assert.Equal(t, "d_r8", r.Then.ID)

	c, err := s.Diagnose(context.Background(), []string{sym.ID})
	require.NoError(t, err)
	require.Len(t, c.Result.Diagnoses, 1)
	assert.Equal(t, models.Diagnosis{
		RuleID: "r8", DiagnosisID: "d_r8", DiagnosisText: "Tension headache", Confidence: 0.9,
	}, c.Result.Diagnoses[0])
}

func TestAddRule_RejectedLeavesRulesUnchanged(t *testing.T) {
	s := newSession(t, false)
	before := s.Rules()

	_, err := s.AddRule(nil, "Nothing", 0.5)
	require.Error(t, err)
	assert.True(t, knowledge.IsValidation(err))
	assert.Equal(t, before, s.Rules())
}

func TestKnowledgeBase_IsSnapshot(t *testing.T) {
	s := newSession(t, false)
	kb := s.KnowledgeBase()

	_, err := s.AddSymptom("Headache")
	require.NoError(t, err)
	assert.Len(t, kb.Symptoms(), 9)
	assert.Len(t, s.Symptoms(), 10)
}

func TestSamePassEngineOption(t *testing.T) {
	e := engine.New(knowledge.DefaultDiagnosisPrefix)
	e.Visibility = engine.SamePass
	s, err := New(knowledge.DefaultDocument(), Options{Engine: e})
	require.NoError(t, err)

	c, err := s.Diagnose(context.Background(), []string{"s6", "s7", "s8"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f_overload", "d_r4"}, c.Result.Inferred)
}

func TestHistory(t *testing.T) {
	s := newSession(t, true)
	ctx := context.Background()

	first, err := s.Diagnose(ctx, []string{"s1", "s2"})
	require.NoError(t, err)
	second, err := s.Diagnose(ctx, []string{"s6", "s7", "s8"})
	require.NoError(t, err)

	list, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	got, err := s.Consultation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Result, got.Result)

	found, err := s.SearchHistory(ctx, "burnout")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, second.ID, found[0].ID)

	_, err = s.Consultation(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHistory_Disabled(t *testing.T) {
	s := newSession(t, false)
	ctx := context.Background()

	_, err := s.History(ctx, 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = s.Consultation(ctx, "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = s.SearchHistory(ctx, "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestConcurrentEditsAndDiagnoses(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, err := New(knowledge.DefaultDocument(), Options{})
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers*3)

	for i := range workers {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if _, err := s.AddRule([]string{"s1"}, fmt.Sprintf("Rule %d", i), 0.5); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.Toggle("s2"); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			c, err := s.Diagnose(context.Background(), []string{"s1", "s2"})
			if err != nil {
				errs <- err
				return
			}
			// Every snapshot contains r1 and fires it.
			if len(c.Result.Diagnoses) == 0 || c.Result.Diagnoses[0].DiagnosisID != "d_r1" {
				errs <- fmt.Errorf("unexpected diagnoses %+v", c.Result.Diagnoses)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	rules := s.Rules()
	assert.Len(t, rules, 7+workers)
	seen := map[string]bool{}
	for _, r := range rules {
		assert.False(t, seen[r.ID], "duplicate rule id %s", r.ID)
		seen[r.ID] = true
	}
	require.NoError(t, s.Close())
}
