// Package pipeline registers and executes schema-validated tools behind a
// single invocation pipeline.
//
// Invariants:
// - Tool names are unique for the registry's lifetime or until removed.
// - Input is schema-validated before a handler runs.
// - Every invocation surfaces exactly one of: result, typed execution error.
// - A timed-out handler keeps running but its late result is discarded.
//
// Usage:
//
//	p := pipeline.New(pipeline.Options{DefaultTimeout: 30 * time.Second})
//	_ = p.Register(pipeline.Tool{
//		Name:        "echo",
//		Description: "Echo input",
//		Schema:      echoSchema,
//		Handler: func(ctx context.Context, input map[string]interface{}) (interface{}, error) {
//			return input["text"], nil
//		},
//	})
//	res, err := p.Execute(context.Background(), "echo", map[string]interface{}{"text": "hi"})
package pipeline
