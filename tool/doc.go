// Package tool defines the function tools agents can call and builds their
// JSON schemas from Go argument types.
//
// # Typed Tools
//
// A tool wraps a Go function whose argument struct doubles as the schema
// sent to the model:
//
//	type WeatherArgs struct {
//		City string `json:"city" jsonschema:"the city to look up"`
//	}
//
//	weather, err := tool.New("get_weather", "Get weather for a given city.",
//		func(ctx context.Context, args WeatherArgs) (string, error) {
//			return "It's always sunny in " + args.City + "!", nil
//		})
//
// Arguments produced by the model are decoded with JSON repair, so trailing
// commas or missing braces do not fail the call. Empty arguments decode as
// an empty object.
//
// # Artifacts
//
// NewWithArtifact returns a Result whose Content goes back to the model
// while Artifact stays with the caller. The retrieval tools use it to keep
// the retrieved documents next to their serialized text.
//
// # Retrieval Tools
//
// Retriever adapts any langchaingo schema.Retriever, and Context searches a
// vectorstore.Store directly:
//
//	retrieve, err := tool.Context(store, 2)
//
// Both serialize documents as
//
//	Source: {"source":"https://example.com"}
//	Content: ...
//
// separated by blank lines.
//
// # langchaingo Interop
//
// AsLangChain exposes a Tool as a langchaingo tools.Tool for code that
// expects that interface.
package tool
