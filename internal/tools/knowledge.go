package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagnerlima/psytech-mcp/internal/knowledge"
	"github.com/wagnerlima/psytech-mcp/internal/session"
)

// KnowledgeTools serves reads and edits of the session knowledge base.
type KnowledgeTools struct {
	Session *session.Session
}

// --- Input types ---

type AddSymptomInput struct {
	Text string `json:"text" jsonschema:"Symptom description shown to the user"`
}

type AddRuleInput struct {
	If         []string `json:"if" jsonschema:"Premise fact ids; all must hold for the rule to fire"`
	Then       string   `json:"then" jsonschema:"Text of the diagnosis the rule concludes"`
	Confidence any      `json:"confidence,omitempty" jsonschema:"Certainty factor in (0,1]; a number or numeric string, defaults to 0.7"`
}

// --- Handlers ---

func (t *KnowledgeTools) ListSymptoms(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Session.Symptoms())
}

func (t *KnowledgeTools) ListRules(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Session.Rules())
}

func (t *KnowledgeTools) ReadKnowledgeBase(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Session.KnowledgeBase().Document())
}

func (t *KnowledgeTools) AddSymptom(_ context.Context, _ *mcp.CallToolRequest, input AddSymptomInput) (*mcp.CallToolResult, any, error) {
	sym, err := t.Session.AddSymptom(input.Text)
	if err != nil {
		return mutationError("add symptom", err), nil, nil
	}
	return toolJSON(sym)
}

func (t *KnowledgeTools) AddRule(_ context.Context, _ *mcp.CallToolRequest, input AddRuleInput) (*mcp.CallToolResult, any, error) {
	r, err := t.Session.AddRule(input.If, input.Then, input.Confidence)
	if err != nil {
		return mutationError("add rule", err), nil, nil
	}
	return toolJSON(r)
}

func mutationError(op string, err error) *mcp.CallToolResult {
	if knowledge.IsValidation(err) {
		return toolError("Cannot %s: %v", op, err)
	}
	return toolError("Failed to %s: %v", op, err)
}
