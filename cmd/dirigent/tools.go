package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nugget/dirigent/internal/tools"
)

// Built-in tool argument types. The jsonschema tags drive the input
// schemas presented to the model.

type sendEmailArgs struct {
	To      string `json:"to" jsonschema:"required,description=Recipient email address"`
	Subject string `json:"subject" jsonschema:"required,description=Email subject line"`
	Body    string `json:"body" jsonschema:"required,description=Email body text"`
}

type readSheetArgs struct {
	SheetID string `json:"sheet_id" jsonschema:"required,description=Spreadsheet identifier"`
	Range   string `json:"range" jsonschema:"description=A1-notation range to read (default: whole sheet)"`
}

type updateSheetArgs struct {
	SheetID string     `json:"sheet_id" jsonschema:"required,description=Spreadsheet identifier"`
	Range   string     `json:"range" jsonschema:"required,description=A1-notation range to write"`
	Values  [][]string `json:"values" jsonschema:"required,description=Rows of cell values to write"`
}

// registerBuiltinTools installs the stock tool set. These are local
// stand-ins that log and acknowledge; production deployments replace
// them with real integrations at this seam.
func registerBuiltinTools(registry *tools.Registry, logger *slog.Logger) error {
	builtins := []*tools.Tool{
		{
			Name:        "send_email",
			Description: "Send an email to a recipient.",
			InputSchema: tools.GenerateSchema[sendEmailArgs](),
			Handler: func(_ context.Context, input json.RawMessage) (string, error) {
				var args sendEmailArgs
				if err := json.Unmarshal(input, &args); err != nil {
					return "", fmt.Errorf("invalid send_email input: %w", err)
				}
				if args.To == "" {
					return "", fmt.Errorf("send_email requires a recipient")
				}
				logger.Info("send_email", "to", args.To, "subject", args.Subject)
				return marshalResult(map[string]any{
					"status":  "sent",
					"to":      args.To,
					"subject": args.Subject,
				})
			},
		},
		{
			Name:        "read_sheet",
			Description: "Read rows from a spreadsheet.",
			InputSchema: tools.GenerateSchema[readSheetArgs](),
			Handler: func(_ context.Context, input json.RawMessage) (string, error) {
				var args readSheetArgs
				if err := json.Unmarshal(input, &args); err != nil {
					return "", fmt.Errorf("invalid read_sheet input: %w", err)
				}
				logger.Info("read_sheet", "sheet_id", args.SheetID, "range", args.Range)
				return marshalResult(map[string]any{
					"sheet_id": args.SheetID,
					"range":    args.Range,
					"values":   [][]string{},
				})
			},
		},
		{
			Name:        "update_sheet",
			Description: "Write rows to a spreadsheet range.",
			InputSchema: tools.GenerateSchema[updateSheetArgs](),
			Handler: func(_ context.Context, input json.RawMessage) (string, error) {
				var args updateSheetArgs
				if err := json.Unmarshal(input, &args); err != nil {
					return "", fmt.Errorf("invalid update_sheet input: %w", err)
				}
				logger.Info("update_sheet", "sheet_id", args.SheetID, "range", args.Range, "rows", len(args.Values))
				return marshalResult(map[string]any{
					"status":       "updated",
					"sheet_id":     args.SheetID,
					"range":        args.Range,
					"rows_written": len(args.Values),
				})
			},
		},
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(b), nil
}
