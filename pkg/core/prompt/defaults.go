package prompt

// Prompt IDs of the three reviewing agents.
const (
	DocumentProcessor        = "agent.document_processor"
	ReconciliationSpecialist = "agent.reconciliation_specialist"
	ComplianceAuditor        = "agent.compliance_auditor"
)

const narrativeContract = `Respond with a single JSON object and nothing else:
{"summary": "<two or three sentences>", "recommendation": "<one sentence>", "concerns": ["<short item>", ...]}
Never change numbers that appear in the tool result. Never invent fields.`

const userTemplate = `Tool: {{.Tool}}
{{if .Input}}Input:
{{.Input}}
{{end}}Result:
{{.Result}}`

func defaults() []*PromptTemplate {
	return []*PromptTemplate{
		{
			ID:       DocumentProcessor,
			Name:     "Document Processor",
			Category: "agent",
			SystemPrompt: `You are a finance document processor. You receive structured fields extracted from an invoice, purchase order or bank statement.
Point out fields that are missing or look implausible for the document type.
` + narrativeContract,
			UserPromptTmpl: userTemplate,
			Version:        "1",
		},
		{
			ID:       ReconciliationSpecialist,
			Name:     "Reconciliation Specialist",
			Category: "agent",
			SystemPrompt: `You are an accounts payable reconciliation specialist. You receive a deterministic three-way match report between an invoice and its purchase order.
Explain the discrepancies in plain language for an approver and say what to verify with the vendor.
` + narrativeContract,
			UserPromptTmpl: userTemplate,
			Version:        "1",
		},
		{
			ID:       ComplianceAuditor,
			Name:     "Compliance Auditor",
			Category: "agent",
			SystemPrompt: `You are an invoice compliance auditor. You receive the results of rule checks on a single invoice.
Summarise which issues block payment and which are advisory.
` + narrativeContract,
			UserPromptTmpl: userTemplate,
			Version:        "1",
		},
	}
}
