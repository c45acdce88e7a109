package ade

import (
	"embed"
	"encoding/json"
	"fmt"

	"docsamajh/pkg/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaFor returns the extraction schema for kind.
func SchemaFor(kind models.DocumentKind) (json.RawMessage, error) {
	switch kind {
	case models.KindInvoice, models.KindPurchaseOrder, models.KindBankStatement:
	default:
		return nil, fmt.Errorf("no extraction schema for document type %q", kind)
	}
	data, err := schemaFS.ReadFile("schemas/" + string(kind) + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to load schema for %s: %w", kind, err)
	}
	return json.RawMessage(data), nil
}
