package tools

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/models"
	"github.com/wagnerlima/psytech-mcp/internal/report"
	"github.com/wagnerlima/psytech-mcp/internal/session"
	"github.com/wagnerlima/psytech-mcp/internal/storage"
)

// ConsultationTools serves the symptom checklist, diagnosis runs and the
// consultation history.
type ConsultationTools struct {
	Session *session.Session
}

// --- Input types ---

type ToggleSymptomInput struct {
	ID string `json:"id" jsonschema:"Symptom id to select or deselect"`
}

type SelectSymptomsInput struct {
	IDs []string `json:"ids" jsonschema:"Symptom ids that replace the current selection"`
}

type DiagnoseInput struct {
	Symptoms []string `json:"symptoms,omitempty" jsonschema:"Fact ids to start from; defaults to the current selection"`
	Format   string   `json:"format,omitempty" jsonschema:"Result format: json (default) or text"`
}

type ListConsultationsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of consultations to return, newest first"`
}

type GetConsultationInput struct {
	ID string `json:"id" jsonschema:"Consultation id"`
}

type SearchConsultationsInput struct {
	Query string `json:"query" jsonschema:"Words to find in diagnosis text; all must match"`
}

type selectionResult struct {
	Selected []string          `json:"selected"`
	Labels   map[string]string `json:"labels"`
}

// --- Handlers ---

func (t *ConsultationTools) ToggleSymptom(_ context.Context, _ *mcp.CallToolRequest, input ToggleSymptomInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Symptom id is required"), nil, nil
	}
	on, err := t.Session.Toggle(input.ID)
	if err != nil {
		return toolError("Cannot toggle symptom: %v", err), nil, nil
	}
	return toolJSON(struct {
		ID       string   `json:"id"`
		Checked  bool     `json:"checked"`
		Selected []string `json:"selected"`
	}{input.ID, on, t.Session.Selected()})
}

func (t *ConsultationTools) SelectSymptoms(_ context.Context, _ *mcp.CallToolRequest, input SelectSymptomsInput) (*mcp.CallToolResult, any, error) {
	sel, err := t.Session.Select(input.IDs)
	if err != nil {
		return toolError("Cannot select symptoms: %v", err), nil, nil
	}
	return toolJSON(t.selection(sel))
}

func (t *ConsultationTools) GetSelection(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.selection(t.Session.Selected()))
}

func (t *ConsultationTools) ResetSelection(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	t.Session.Reset()
	return toolText("Selection cleared."), nil, nil
}

func (t *ConsultationTools) Diagnose(ctx context.Context, _ *mcp.CallToolRequest, input DiagnoseInput) (*mcp.CallToolResult, any, error) {
	format := strings.ToLower(input.Format)
	if format != "" && format != "json" && format != "text" {
		return toolError("Unknown format %q (use json or text)", input.Format), nil, nil
	}

	c, err := t.Session.Diagnose(ctx, input.Symptoms)
	if err != nil {
		if knowledge.IsValidation(err) {
			return toolError("Cannot diagnose: %v", err), nil, nil
		}
		return toolError("Diagnosis failed: %v", err), nil, nil
	}

	if format == "text" {
		var b strings.Builder
		if err := report.Text(&b, c); err != nil {
			return toolError("Failed to render result: %v", err), nil, nil
		}
		return toolText(b.String()), nil, nil
	}
	return toolJSON(c)
}

func (t *ConsultationTools) ListConsultations(ctx context.Context, _ *mcp.CallToolRequest, input ListConsultationsInput) (*mcp.CallToolResult, any, error) {
	list, err := t.Session.History(ctx, input.Limit)
	if err != nil {
		return historyError("list consultations", err), nil, nil
	}
	return toolJSON(summarize(list))
}

func (t *ConsultationTools) GetConsultation(ctx context.Context, _ *mcp.CallToolRequest, input GetConsultationInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Consultation id is required"), nil, nil
	}
	c, err := t.Session.Consultation(ctx, input.ID)
	if err != nil {
		return historyError("get consultation", err), nil, nil
	}
	return toolJSON(c)
}

func (t *ConsultationTools) SearchConsultations(ctx context.Context, _ *mcp.CallToolRequest, input SearchConsultationsInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Query) == "" {
		return toolError("Search query is required"), nil, nil
	}
	list, err := t.Session.SearchHistory(ctx, input.Query)
	if err != nil {
		return historyError("search consultations", err), nil, nil
	}
	return toolJSON(summarize(list))
}

func (t *ConsultationTools) selection(ids []string) selectionResult {
	kb := t.Session.KnowledgeBase()
	return selectionResult{Selected: ids, Labels: kb.Labels(ids)}
}

// consultationSummary is the list view of a consultation; the full trace is
// available from get_consultation.
type consultationSummary struct {
	ID        string             `json:"id"`
	CreatedAt string             `json:"created_at"`
	Selected  []string           `json:"selected"`
	Diagnoses []models.Diagnosis `json:"diagnoses"`
	Passes    int                `json:"passes"`
}

func summarize(list []models.Consultation) []consultationSummary {
	out := make([]consultationSummary, 0, len(list))
	for _, c := range list {
		out = append(out, consultationSummary{
			ID:        c.ID,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
			Selected:  c.Selected,
			Diagnoses: c.Result.Diagnoses,
			Passes:    c.Result.Passes,
		})
	}
	return out
}

func historyError(op string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, session.ErrHistoryDisabled):
		return toolError("Consultation history is disabled on this server")
	case errors.Is(err, storage.ErrNotFound):
		return toolError("Consultation not found")
	}
	return toolError("Failed to %s: %v", op, err)
}
