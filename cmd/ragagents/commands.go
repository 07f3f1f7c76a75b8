package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentkit-go/ragagents/recipes/agenticrag"
	"github.com/agentkit-go/ragagents/recipes/quickstart"
	"github.com/agentkit-go/ragagents/recipes/ragagent"
	"github.com/agentkit-go/ragagents/recipes/semanticsearch"
	"github.com/agentkit-go/ragagents/recipes/supervisor"
	"github.com/agentkit-go/ragagents/server"
	"github.com/agentkit-go/ragagents/telemetry"
)

func (a *app) quickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quickstart",
		Short: "Ask the pun-speaking weather forecaster two questions on one thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			_, err = quickstart.Run(cmd.Context(), env)
			return err
		},
	}
}

func (a *app) searchCmd() *cobra.Command {
	q := semanticsearch.DefaultQueries()
	cmd := &cobra.Command{
		Use:   "search [file]",
		Short: "Index a PDF or text file and run the similarity search variants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := semanticsearch.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			_, err = semanticsearch.Run(cmd.Context(), env, path, q)
			return err
		},
	}
	cmd.Flags().StringVar(&q.Search, "query", q.Search, "query for the plain and async searches")
	cmd.Flags().StringVar(&q.WithScore, "score-query", q.WithScore, "query for the scored search")
	cmd.Flags().StringVar(&q.ByVector, "vector-query", q.ByVector, "query embedded for the search by vector")
	return cmd
}

func (a *app) ragCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rag [url...]",
		Short: "Answer with context injected from an indexed blog post",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			_, err = ragagent.Run(cmd.Context(), env, args)
			return err
		},
	}
}

func (a *app) agenticRAGCmd() *cobra.Command {
	var mermaid bool
	cmd := &cobra.Command{
		Use:   "agentic-rag [url...]",
		Short: "Retrieve, grade and rewrite until the context answers the question",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			_, err = agenticrag.Run(cmd.Context(), env, args, a.split, mermaid)
			return err
		},
	}
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "print the graph as a Mermaid flowchart first")
	return cmd
}

func (a *app) supervisorCmd() *cobra.Command {
	var autoApprove bool
	cmd := &cobra.Command{
		Use:   "supervisor",
		Short: "Schedule a meeting and send a reminder through reviewed sub-agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := a.env(cmd.Context())
			if err != nil {
				return err
			}
			approve := supervisor.PromptApprover(cmd.InOrStdin(), cmd.OutOrStdout())
			if autoApprove {
				approve = supervisor.AutoApprove
			}
			st, err := supervisor.Run(cmd.Context(), env, approve)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.Answer())
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "approve every pending tool call without asking")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [url...]",
		Short: "Index the blog posts and serve search and agentic RAG over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.metrics == nil {
				a.metrics = telemetry.New(nil)
			}
			env, err := a.env(ctx)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = agenticrag.BlogURLs
			}
			store, err := agenticrag.Index(ctx, env, args, a.split)
			if err != nil {
				return err
			}
			retriever, err := agenticrag.RetrieverTool(store)
			if err != nil {
				return err
			}
			opts := []agenticrag.Option{agenticrag.WithLogger(env.Log())}
			if env.Metrics != nil {
				opts = append(opts, agenticrag.WithObserver(env.Metrics))
			}
			p, err := agenticrag.New(env.Model, retriever, opts...)
			if err != nil {
				return err
			}
			srv, err := server.New(store, p, env.Metrics, env.Log(), server.WithDefaultK(env.Config.Retrieval.K))
			if err != nil {
				return err
			}
			if addr == "" {
				addr = env.Config.Server.Addr
			}
			if addr == "" {
				return errors.New("serve: no listen address")
			}
			return a.listen(ctx, srv, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	return cmd
}
