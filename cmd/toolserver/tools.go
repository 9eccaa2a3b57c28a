package main

import (
	"context"
	"fmt"

	"github.com/wagiedev/toolserver-go"
)

// registerMathToolkit registers the demo arithmetic toolkit.
func registerMathToolkit(cat *toolserver.Catalog) error {
	return cat.RegisterToolkit(
		toolserver.Toolkit{Name: "Math", Version: "1.0.0", Description: "Basic arithmetic"},
		toolserver.Tool{
			Name:        "Add",
			Description: "Adds two numbers and returns the sum.",
			Params: []toolserver.Param{
				{Name: "a", Type: toolserver.TypeNumber, Description: "First addend", Required: true},
				{Name: "b", Type: toolserver.TypeNumber, Description: "Second addend", Required: true},
			},
			Output:  toolserver.Output{Type: toolserver.TypeNumber, Description: "The sum of a and b"},
			Hints:   &toolserver.Hints{ReadOnly: true, Idempotent: true},
			Execute: addTool,
		},
		toolserver.Tool{
			Name:        "Divide",
			Description: "Divides one number by another.",
			Params: []toolserver.Param{
				{Name: "dividend", Type: toolserver.TypeNumber, Description: "Number to divide", Required: true},
				{Name: "divisor", Type: toolserver.TypeNumber, Description: "Number to divide by", Required: true},
			},
			Output:  toolserver.Output{Type: toolserver.TypeNumber, Description: "The quotient"},
			Hints:   &toolserver.Hints{ReadOnly: true, Idempotent: true},
			Execute: divideTool,
		},
	)
}

func addTool(_ context.Context, _ *toolserver.ToolContext, args map[string]any) (any, error) {
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)

	return a + b, nil
}

func divideTool(_ context.Context, _ *toolserver.ToolContext, args map[string]any) (any, error) {
	dividend, _ := args["dividend"].(float64)
	divisor, _ := args["divisor"].(float64)

	if divisor == 0 {
		return nil, &toolserver.ToolExecutionError{
			Message:          "Cannot divide by zero",
			DeveloperMessage: fmt.Sprintf("division by zero: %v / %v", dividend, divisor),
		}
	}

	return dividend / divisor, nil
}
