package agent

import (
	"context"
	"fmt"

	"catchup-agent/internal/domain/entity"
)

// RegisterDocumentTools wires the document-handling tool stubs: their
// argument and return shape matches what the upload subsystem will one day
// produce, but extraction itself is out of scope here.
func RegisterDocumentTools(registry *Registry) {
	registry.Register(
		"extract_pdf_text",
		"Extract plain text from a previously uploaded PDF file.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_id": map[string]any{"type": "string", "description": "Identifier minted by the upload subsystem"},
			},
			"required": []string{"file_id"},
		},
		documentStub("extract_pdf_text"),
	)

	registry.Register(
		"analyze_csv_file",
		"Summarise the columns and row count of a previously uploaded CSV file.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_id": map[string]any{"type": "string", "description": "Identifier minted by the upload subsystem"},
			},
			"required": []string{"file_id"},
		},
		documentStub("analyze_csv_file"),
	)

	registry.Register(
		"extract_action_items",
		"Extract action items from a previously uploaded document.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"file_id": map[string]any{"type": "string", "description": "Identifier minted by the upload subsystem"},
			},
			"required": []string{"file_id"},
		},
		documentStub("extract_action_items"),
	)
}

// documentStub returns a handler that reports the tool as unimplemented
// rather than failing the whole agent loop; the upload subsystem that would
// back these tools is out of scope.
func documentStub(name string) entity.ToolHandler {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		fileID, _ := arguments["file_id"].(string)
		return map[string]any{
			"success": false,
			"note":    fmt.Sprintf("%s is not implemented in this deployment", name),
			"file_id": fileID,
		}, nil
	}
}
