package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"docsamajh/pkg/core/ade"
	"docsamajh/pkg/core/compliance"
	"docsamajh/pkg/core/logging"
	"docsamajh/pkg/core/prompt"
	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/core/utils"
	"docsamajh/pkg/models"
)

// Tool names exposed by the three reviewing agents.
const (
	ToolParseInvoice       = "parse_invoice"
	ToolParsePurchaseOrder = "parse_purchase_order"
	ToolParseBankStatement = "parse_bank_statement"
	ToolReconcile          = "reconcile_invoice_to_po"
	ToolCompliance         = "compliance_check"
)

// Executor is the part of Manager an Agent needs. A nil Executor disables
// narratives.
type Executor interface {
	ExecutePrompt(ctx context.Context, agentType string, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// Tool is a deterministic local function an agent may run.
type Tool struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args interface{}) (interface{}, error)
}

// Agent pairs a role prompt with the tools it is allowed to run.
type Agent struct {
	Name     string // config key, e.g. "reconciliation_specialist"
	Role     string
	PromptID string
	Tools    map[string]Tool

	exec    Executor
	prompts *prompt.Registry
}

// Narrative is the model's commentary on a tool result.
type Narrative struct {
	Summary        string   `json:"summary" validate:"required"`
	Recommendation string   `json:"recommendation"`
	Concerns       []string `json:"concerns"`
}

// Invocation is the outcome of Agent.Invoke. Result is always the tool's
// output; the narrative is best effort.
type Invocation struct {
	Agent          string      `json:"agent"`
	Tool           string      `json:"tool"`
	Result         interface{} `json:"result"`
	Narrative      *Narrative  `json:"narrative,omitempty"`
	NarrativeError string      `json:"narrative_error,omitempty"`
}

// Invoke runs tool with args, then asks the model to comment on the result.
// Only a tool failure is returned as an error.
func (a *Agent) Invoke(ctx context.Context, tool string, args interface{}) (*Invocation, error) {
	t, ok := a.Tools[tool]
	if !ok {
		return nil, fmt.Errorf("agent %s has no tool %q (available: %v)", a.Name, tool, a.ToolNames())
	}

	result, err := t.Run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}

	inv := &Invocation{Agent: a.Role, Tool: tool, Result: result}
	a.annotate(ctx, inv, args)
	return inv, nil
}

// Review asks for commentary on a result produced outside the agent's own
// tools, e.g. an extraction whose type was auto-detected.
func (a *Agent) Review(ctx context.Context, tool string, result interface{}) *Invocation {
	inv := &Invocation{Agent: a.Role, Tool: tool, Result: result}
	a.annotate(ctx, inv, nil)
	return inv
}

func (a *Agent) annotate(ctx context.Context, inv *Invocation, args interface{}) {
	if a.exec == nil {
		return
	}
	narrative, err := a.narrate(ctx, inv.Tool, args, inv.Result)
	if err != nil {
		logging.LogError("agent", "Invoke", a.Name+"/"+inv.Tool, nil, err)
		inv.NarrativeError = err.Error()
		return
	}
	inv.Narrative = narrative
}

func (a *Agent) narrate(ctx context.Context, tool string, args, result interface{}) (*Narrative, error) {
	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}

	pctx := prompt.NewContext().Set("Tool", tool).Set("Result", string(resultJSON))
	// Raw uploads are not worth the tokens; structured inputs are.
	if _, raw := args.(Document); !raw && args != nil {
		if in, err := json.MarshalIndent(args, "", "  "); err == nil {
			pctx.Set("Input", string(in))
		}
	}

	registry := a.prompts
	if registry == nil {
		registry = prompt.Get()
	}
	system, user, err := registry.Render(a.PromptID, pctx)
	if err != nil {
		return nil, err
	}

	reply, err := a.exec.ExecutePrompt(ctx, a.Name, user, system, map[string]interface{}{"json": true})
	if err != nil {
		return nil, fmt.Errorf("narrative request failed: %w", err)
	}

	var n Narrative
	if _, err := utils.SmartParse(reply, &n); err != nil {
		return nil, err
	}
	if n.Concerns == nil {
		n.Concerns = []string{}
	}
	return &n, nil
}

// ToolNames lists the agent's tools, sorted.
func (a *Agent) ToolNames() []string {
	names := make([]string, 0, len(a.Tools))
	for n := range a.Tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Document is a raw upload handed to a parse tool.
type Document struct {
	Filename string
	Content  []byte
}

// ParseFunc extracts a document as the given kind.
type ParseFunc func(ctx context.Context, kind models.DocumentKind, doc Document) (*ade.Extraction, error)

// NewDocumentProcessor builds the agent that turns uploads into records.
func NewDocumentProcessor(exec Executor, prompts *prompt.Registry, parse ParseFunc) *Agent {
	tool := func(name, desc string, kind models.DocumentKind) Tool {
		return Tool{
			Name:        name,
			Description: desc,
			Run: func(ctx context.Context, args interface{}) (interface{}, error) {
				doc, ok := args.(Document)
				if !ok {
					return nil, fmt.Errorf("expected agent.Document, got %T", args)
				}
				return parse(ctx, kind, doc)
			},
		}
	}
	return &Agent{
		Name:     "document_processor",
		Role:     "Document Processor",
		PromptID: prompt.DocumentProcessor,
		Tools: map[string]Tool{
			ToolParseInvoice:       tool(ToolParseInvoice, "Extract invoice fields from a PDF", models.KindInvoice),
			ToolParsePurchaseOrder: tool(ToolParsePurchaseOrder, "Extract purchase order fields from a PDF", models.KindPurchaseOrder),
			ToolParseBankStatement: tool(ToolParseBankStatement, "Extract bank statement fields from a PDF", models.KindBankStatement),
		},
		exec:    exec,
		prompts: prompts,
	}
}

// ParseToolFor returns the Document Processor tool for kind.
func ParseToolFor(kind models.DocumentKind) string {
	switch kind {
	case models.KindPurchaseOrder:
		return ToolParsePurchaseOrder
	case models.KindBankStatement:
		return ToolParseBankStatement
	default:
		return ToolParseInvoice
	}
}

// NewReconciliationSpecialist builds the agent that grades invoice/PO pairs.
func NewReconciliationSpecialist(exec Executor, prompts *prompt.Registry, policy reconcile.Policy) *Agent {
	return &Agent{
		Name:     "reconciliation_specialist",
		Role:     "Reconciliation Specialist",
		PromptID: prompt.ReconciliationSpecialist,
		Tools: map[string]Tool{
			ToolReconcile: {
				Name:        ToolReconcile,
				Description: "Three-way match of an invoice against its purchase order",
				Run: func(ctx context.Context, args interface{}) (interface{}, error) {
					pair, ok := args.(reconcile.Pair)
					if !ok {
						return nil, fmt.Errorf("expected reconcile.Pair, got %T", args)
					}
					return reconcile.ReconcileWithPolicy(pair.Invoice, pair.PurchaseOrder, policy), nil
				},
			},
		},
		exec:    exec,
		prompts: prompts,
	}
}

// NewComplianceAuditor builds the agent that runs invoice rule checks.
func NewComplianceAuditor(exec Executor, prompts *prompt.Registry) *Agent {
	return &Agent{
		Name:     "compliance_auditor",
		Role:     "Compliance Auditor",
		PromptID: prompt.ComplianceAuditor,
		Tools: map[string]Tool{
			ToolCompliance: {
				Name:        ToolCompliance,
				Description: "Required fields, tax arithmetic and approval thresholds",
				Run: func(ctx context.Context, args interface{}) (interface{}, error) {
					inv, ok := args.(models.DocumentRecord)
					if !ok {
						return nil, fmt.Errorf("expected models.DocumentRecord, got %T", args)
					}
					return compliance.Check(inv), nil
				},
			},
		},
		exec:    exec,
		prompts: prompts,
	}
}
