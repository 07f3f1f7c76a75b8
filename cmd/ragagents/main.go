// Command ragagents runs the retrieval and agent recipes and serves the
// agentic RAG pipeline over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentkit-go/ragagents/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp(os.Stdin, os.Stdout)).ExecuteContext(ctx); err != nil {
		log.Error("%v", err)
		stop()
		os.Exit(1)
	}
}
