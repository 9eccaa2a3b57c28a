// Package toolserver turns a set of Go functions into an MCP tool server.
//
// Tools are declared as data: a Tool descriptor names its parameters and
// output, and the catalog derives JSON schemas and validation models from
// the descriptor at registration time. A Server then exposes the catalog
// over JSON-RPC 2.0 on newline-delimited stdio.
//
// # Basic Usage
//
// Declare tools, register them under a toolkit, and serve:
//
//	cat := toolserver.NewCatalog(logger, toolserver.CatalogConfig{})
//
//	err := cat.RegisterToolkit(
//	    toolserver.Toolkit{Name: "Math", Version: "1.0.0"},
//	    toolserver.Tool{
//	        Name:        "Add",
//	        Description: "Adds two numbers.",
//	        Params: []toolserver.Param{
//	            {Name: "a", Type: toolserver.TypeNumber, Description: "First addend", Required: true},
//	            {Name: "b", Type: toolserver.TypeNumber, Description: "Second addend", Required: true},
//	        },
//	        Output: toolserver.Output{Type: toolserver.TypeNumber, Description: "The sum"},
//	        Execute: func(ctx context.Context, tc *toolserver.ToolContext, args map[string]any) (any, error) {
//	            return args["a"].(float64) + args["b"].(float64), nil
//	        },
//	    },
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := toolserver.NewServer(cat, toolserver.ServerOptions{Name: "math-server", Logger: logger})
//	if err := toolserver.ServeStdio(ctx, logger, srv); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Handling
//
// Handlers report failures with ordinary errors. Two error types refine how
// a failure is surfaced to the caller: ToolExecutionError separates the
// user-facing message from developer detail, and RetryableToolError
// additionally tells the caller it may retry and when. Any other error is
// wrapped in a generic per-tool message so internals never leak.
package toolserver
