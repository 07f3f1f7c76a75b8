// Ragagents - Retrieval-Augmented Agents in Go
//
// Ragagents builds tool-calling agents and retrieval pipelines on the
// langgraphgo state graph runtime and langchaingo model interfaces.
//
// # Packages
//
//   - message: chat messages, roles and pretty printing
//   - llm: model construction from configuration, structured output and
//     JSON schema helpers (llm/llmtest holds scripted models for tests)
//   - document: PDF, text and web page loaders
//   - splitter: recursive character and token splitters
//   - vectorstore: in-memory store plus pgvector, Redis and Weaviate
//     through langchaingo
//   - checkpoint: thread checkpointers (memory, file, SQLite, Postgres, Redis)
//   - tool: typed function tools and retrieval tools
//   - agent: the tool-calling agent, streaming, human-in-the-loop review
//     and sub-agents as tools
//   - telemetry: Prometheus metrics for agents and stores
//   - recipes: the runnable examples wired end to end
//   - server: HTTP search and agentic RAG API
//
// # Quick Start
//
//	ragagents -c config.yaml quickstart
//	ragagents search ./report.pdf
//	ragagents agentic-rag --mermaid
//	ragagents supervisor
//	ragagents serve --addr :8080
//
// # Agents
//
//	a, err := agent.New(model, []tool.Tool{weather},
//		agent.WithSystemPrompt("You are a helpful assistant"),
//		agent.WithCheckpointer(checkpoint.NewMemory()),
//	)
//	st, err := a.Invoke(ctx, agent.Ask("what is the weather in sf"),
//		agent.RunConfig{ThreadID: "1"})
package ragagents
