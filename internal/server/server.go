// Package server assembles the MCP server and its tool set.
package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/wagnerlima/psytech-mcp/internal/session"
	"github.com/wagnerlima/psytech-mcp/internal/tools"
)

// Version is reported in the MCP handshake. Overridden at build time.
var Version = "0.1.0"

// New creates a fully configured MCP server with all tools registered
// against sess. Every client connected to it shares sess.
func New(sess *session.Session, logger *zap.Logger) *mcp.Server {
	return newServer(sess, logger, nil)
}

func newServer(sess *session.Session, logger *zap.Logger, opts *mcp.ServerOptions) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	kt := &tools.KnowledgeTools{Session: sess}
	ct := &tools.ConsultationTools{Session: sess}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "psytech-mcp",
		Version: Version,
	}, opts)

	// Knowledge base tools
	register(srv, logger, "list_symptoms",
		"List the symptoms of the working knowledge base in insertion order", kt.ListSymptoms)
	register(srv, logger, "list_rules",
		"List the inference rules in declaration order", kt.ListRules)
	register(srv, logger, "read_knowledge_base",
		"Export the working knowledge base as a {symptoms, rules} document", kt.ReadKnowledgeBase)
	register(srv, logger, "add_symptom",
		"Add a symptom to the working knowledge base (in memory only)", kt.AddSymptom)
	register(srv, logger, "add_rule",
		"Add a rule concluding a new diagnosis from premise fact ids (in memory only)", kt.AddRule)

	// Checklist and diagnosis tools
	register(srv, logger, "toggle_symptom",
		"Select or deselect one symptom in the checklist", ct.ToggleSymptom)
	register(srv, logger, "select_symptoms",
		"Replace the checklist selection with the given symptom ids", ct.SelectSymptoms)
	register(srv, logger, "get_selection",
		"Show the currently selected symptoms", ct.GetSelection)
	register(srv, logger, "reset_selection",
		"Clear the checklist selection", ct.ResetSelection)
	register(srv, logger, "diagnose",
		"Run forward chaining over the given symptoms, or the current selection, and report diagnoses with certainty factors and a rule trace", ct.Diagnose)

	// History tools
	register(srv, logger, "list_consultations",
		"List recent consultations of this session, newest first", ct.ListConsultations)
	register(srv, logger, "get_consultation",
		"Retrieve a past consultation with its full trace", ct.GetConsultation)
	register(srv, logger, "search_consultations",
		"Search past consultations by diagnosis text (FTS5)", ct.SearchConsultations)

	return srv
}

func register[In any](srv *mcp.Server, logger *zap.Logger, name, description string, h mcp.ToolHandlerFor[In, any]) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        name,
		Description: description,
	}, tools.Instrument(name, logger, h))
}
