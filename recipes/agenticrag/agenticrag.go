// Package agenticrag is a retrieval graph that grades what it retrieved and
// rewrites the question when the documents are not relevant:
//
//	START -> generate_query_or_respond -> retrieve -> grade_documents
//	grade_documents -> generate_answer -> END
//	grade_documents -> rewrite_question -> generate_query_or_respond
//
// generate_query_or_respond ends the run when the model answers directly.
package agenticrag

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/langgraphgo/graph"
	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/agent"
	"github.com/agentkit-go/ragagents/document"
	"github.com/agentkit-go/ragagents/llm"
	"github.com/agentkit-go/ragagents/log"
	"github.com/agentkit-go/ragagents/message"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/splitter"
	"github.com/agentkit-go/ragagents/tool"
	"github.com/agentkit-go/ragagents/vectorstore"
)

// Node names.
const (
	NodeGenerateQuery = "generate_query_or_respond"
	NodeRetrieve      = "retrieve"
	NodeGrade         = "grade_documents"
	NodeRewrite       = "rewrite_question"
	NodeAnswer        = "generate_answer"
)

const (
	// DefaultMaxRewrites bounds the rewrite loop.
	DefaultMaxRewrites = 3

	// Question is the question the recipe asks.
	Question = "What does Lilian Weng say about types of reward hacking?"

	pipelineName = "agentic_rag"
)

// BlogURLs are the indexed posts.
var BlogURLs = []string{
	"https://lilianweng.github.io/posts/2024-11-28-reward-hacking/",
	"https://lilianweng.github.io/posts/2024-07-07-hallucination/",
	"https://lilianweng.github.io/posts/2024-04-12-diffusion-video/",
}

const GradePrompt = "You are a grader assessing relevance of a retrieved document to a user question. \n " +
	"Here is the retrieved document: \n\n %s \n\n" +
	"Here is the user question: %s \n" +
	"If the document contains keyword(s) or semantic meaning related to the user question, grade it as relevant. \n" +
	"Give a binary score 'yes' or 'no' score to indicate whether the document is relevant to the question."

const RewritePrompt = "Look at the input and try to reason about the underlying semantic intent / meaning.\n" +
	"Here is the initial question:" +
	"\n ------- \n" +
	"%s" +
	"\n ------- \n" +
	"Formulate an improved question:"

const GeneratePrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, just say that you don't know. " +
	"Use three sentences maximum and keep the answer concise.\n" +
	"Question: %s \n" +
	"Context: %s"

// GradeDocuments is the grader's verdict.
type GradeDocuments struct {
	BinaryScore string `json:"binary_score" jsonschema:"Relevance score: 'yes' if relevant, or 'no' if not relevant"`
}

// Relevant reports whether the score is yes.
func (g GradeDocuments) Relevant() bool {
	return strings.EqualFold(strings.TrimSpace(g.BinaryScore), "yes")
}

// State is the pipeline state.
type State struct {
	Messages []llms.MessageContent `json:"messages"`
	Rewrites int                   `json:"rewrites"`
	Grade    string                `json:"grade,omitempty"`
}

// Answer returns the text of the last message.
func (s State) Answer() string {
	last, ok := message.Last(s.Messages)
	if !ok {
		return ""
	}
	return message.Text(last)
}

func mergeState(current, update State) (State, error) {
	current.Messages = slices.Concat(current.Messages, update.Messages)
	current.Rewrites += update.Rewrites
	if update.Grade != "" {
		current.Grade = update.Grade
	}
	return current, nil
}

// Index loads urls and adds their chunks to a new store. A nil split uses
// 100/50 token chunks in the cl100k_base encoding.
func Index(ctx context.Context, env *recipes.Env, urls []string, split *splitter.Splitter, opts ...document.WebOption) (vectorstore.Store, error) {
	if split == nil {
		var err error
		split, err = splitter.Recursive(100, 50, splitter.WithTokenEncoder("cl100k_base"))
		if err != nil {
			return nil, err
		}
	}
	opts = append([]document.WebOption{document.WithWebLogger(env.Log())}, opts...)
	docs, err := document.NewWebLoader(urls, opts...).Load(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := split.SplitDocuments(docs)
	if err != nil {
		return nil, err
	}
	store, err := env.NewStore(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := store.AddDocuments(ctx, chunks); err != nil {
		return nil, err
	}
	env.Log().Info("indexed %d chunks from %d posts", len(chunks), len(docs))
	return store, nil
}

// RetrieverTool is retrieve_blog_posts over store.
func RetrieverTool(store vectorstore.Store) (tool.Tool, error) {
	return tool.Retriever(vectorstore.NewRetriever(store, vectorstore.DefaultK),
		"retrieve_blog_posts", "Search and return information about Lilian Weng blog posts.")
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGrader grades with a different model than the one answering.
func WithGrader(m llms.Model) Option {
	return func(p *Pipeline) { p.grader = m }
}

// WithMaxRewrites sets how often the question may be rewritten before an
// answer is generated from whatever was retrieved last.
func WithMaxRewrites(n int) Option {
	return func(p *Pipeline) { p.maxRewrites = n }
}

// WithObserver reports model and tool calls.
func WithObserver(obs agent.Observer) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline is the compiled retrieval graph.
type Pipeline struct {
	model       llms.Model
	grader      llms.Model
	tools       []tool.Tool
	retrieve    func(context.Context, []llms.MessageContent) ([]llms.MessageContent, error)
	maxRewrites int
	observer    agent.Observer
	logger      log.Logger

	graph    *graph.StateGraph[State]
	runnable *graph.StateRunnable[State]
}

// New compiles the pipeline around the retriever tool.
func New(model llms.Model, retriever tool.Tool, opts ...Option) (*Pipeline, error) {
	if model == nil {
		return nil, errors.New("agenticrag: model is required")
	}
	if retriever == nil {
		return nil, errors.New("agenticrag: retriever tool is required")
	}
	p := &Pipeline{model: model, maxRewrites: DefaultMaxRewrites}
	for _, opt := range opts {
		opt(p)
	}
	if p.grader == nil {
		p.grader = model
	}
	if p.maxRewrites < 0 {
		p.maxRewrites = 0
	}
	p.logger = log.OrDefault(p.logger)
	p.tools = []tool.Tool{retriever}
	p.retrieve = agent.ToolNode(p.tools)

	g := graph.NewStateGraph[State]()
	g.SetSchema(graph.NewStructSchema(State{}, mergeState))
	g.AddNode(NodeGenerateQuery, "Answer directly or ask the retriever", p.generateQueryOrRespond)
	g.AddNode(NodeRetrieve, "Run the retriever tool", p.retrieveNode)
	g.AddNode(NodeGrade, "Grade the retrieved documents", p.gradeDocuments)
	g.AddNode(NodeRewrite, "Rewrite the question", p.rewriteQuestion)
	g.AddNode(NodeAnswer, "Answer from the retrieved context", p.generateAnswer)
	g.SetEntryPoint(NodeGenerateQuery)
	g.AddConditionalEdge(NodeGenerateQuery, func(_ context.Context, s State) string {
		if agent.HasToolCalls(s.Messages) {
			return NodeRetrieve
		}
		return graph.END
	})
	g.AddEdge(NodeRetrieve, NodeGrade)
	g.AddConditionalEdge(NodeGrade, p.route)
	g.AddEdge(NodeRewrite, NodeGenerateQuery)
	g.AddEdge(NodeAnswer, graph.END)

	runnable, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("agenticrag: compile graph: %w", err)
	}
	p.graph = g
	p.runnable = runnable
	return p, nil
}

// Mermaid renders the graph as a Mermaid flowchart.
func (p *Pipeline) Mermaid() string {
	return graph.NewExporter(p.graph).DrawMermaid()
}

// Invoke answers question.
func (p *Pipeline) Invoke(ctx context.Context, question string) (State, error) {
	return p.run(ctx, question, nil)
}

// Stream answers question and calls fn after every node with the messages
// that node added and the merged state.
func (p *Pipeline) Stream(ctx context.Context, question string, fn func(node string, update []llms.MessageContent, s State)) (State, error) {
	var (
		mu   sync.Mutex
		seen = 1
	)
	step := agent.StepFunc(func(_ context.Context, node string, state any) {
		st, ok := state.(State)
		if !ok {
			return
		}
		mu.Lock()
		var update []llms.MessageContent
		if len(st.Messages) > seen {
			update = st.Messages[seen:]
		}
		seen = len(st.Messages)
		mu.Unlock()
		fn(node, update, st)
	})
	return p.run(ctx, question, []graph.CallbackHandler{step})
}

func (p *Pipeline) run(ctx context.Context, question string, callbacks []graph.CallbackHandler) (State, error) {
	in := State{Messages: []llms.MessageContent{message.Human(question)}}
	return p.runnable.InvokeWithConfig(ctx, in, &graph.Config{Callbacks: callbacks})
}

func (p *Pipeline) generate(ctx context.Context, model llms.Model, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentChoice, error) {
	start := time.Now()
	resp, err := model.GenerateContent(ctx, msgs, opts...)
	p.observe().ModelCall(ctx, pipelineName, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return llm.FirstChoice(resp)
}

func (p *Pipeline) observe() agent.Observer {
	if p.observer == nil {
		return noObserver{}
	}
	return p.observer
}

func (p *Pipeline) generateQueryOrRespond(ctx context.Context, s State) (State, error) {
	choice, err := p.generate(ctx, p.model, s.Messages, llms.WithTools(tool.Definitions(p.tools)))
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", NodeGenerateQuery, err)
	}
	calls := agent.EnsureToolCallIDs(choice.ToolCalls)
	return State{Messages: []llms.MessageContent{message.AI(choice.Content, calls...)}}, nil
}

func (p *Pipeline) retrieveNode(ctx context.Context, s State) (State, error) {
	start := time.Now()
	msgs, err := p.retrieve(ctx, s.Messages)
	p.observe().ToolCall(ctx, pipelineName, p.tools[0].Name(), time.Since(start), err)
	if err != nil {
		return State{}, err
	}
	return State{Messages: msgs}, nil
}

// gradeDocuments grades the last retrieved context against the original
// question. A failing grader counts as relevant so the run still answers.
func (p *Pipeline) gradeDocuments(ctx context.Context, s State) (State, error) {
	question := message.FirstHuman(s.Messages)
	var docs string
	if last, ok := message.Last(s.Messages); ok {
		docs = message.Text(last)
	}
	prompt := []llms.MessageContent{message.Human(fmt.Sprintf(GradePrompt, docs, question))}
	start := time.Now()
	grade, err := llm.Structured[GradeDocuments](ctx, p.grader, prompt, "GradeDocuments",
		"Grade documents using a binary score for relevance check.")
	p.observe().ModelCall(ctx, pipelineName, time.Since(start), err)
	if err != nil {
		p.logger.Warn("%s: grader failed, answering from retrieved context: %v", NodeGrade, err)
		return State{Grade: "yes"}, nil
	}
	score := "no"
	if grade.Relevant() {
		score = "yes"
	}
	p.logger.Debug("%s: score %s after %d rewrite(s)", NodeGrade, score, s.Rewrites)
	return State{Grade: score}, nil
}

func (p *Pipeline) route(_ context.Context, s State) string {
	if s.Grade == "yes" {
		return NodeAnswer
	}
	if s.Rewrites >= p.maxRewrites {
		p.logger.Info("%s: rewrite limit %d reached", NodeGrade, p.maxRewrites)
		return NodeAnswer
	}
	return NodeRewrite
}

func (p *Pipeline) rewriteQuestion(ctx context.Context, s State) (State, error) {
	prompt := []llms.MessageContent{message.Human(fmt.Sprintf(RewritePrompt, message.FirstHuman(s.Messages)))}
	choice, err := p.generate(ctx, p.model, prompt)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", NodeRewrite, err)
	}
	return State{Messages: []llms.MessageContent{message.Human(choice.Content)}, Rewrites: 1}, nil
}

func (p *Pipeline) generateAnswer(ctx context.Context, s State) (State, error) {
	var docs string
	if last, ok := message.Last(s.Messages); ok {
		docs = message.Text(last)
	}
	prompt := []llms.MessageContent{message.Human(fmt.Sprintf(GeneratePrompt, message.FirstHuman(s.Messages), docs))}
	choice, err := p.generate(ctx, p.model, prompt)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", NodeAnswer, err)
	}
	return State{Messages: []llms.MessageContent{message.AI(choice.Content)}}, nil
}

type noObserver struct{}

func (noObserver) ModelCall(context.Context, string, time.Duration, error)         {}
func (noObserver) ToolCall(context.Context, string, string, time.Duration, error) {}
func (noObserver) Interrupted(context.Context, string, int)                       {}

// Run indexes the posts, prints the graph when mermaid is set, and streams
// the answer to Question printing each node update.
func Run(ctx context.Context, env *recipes.Env, urls []string, split *splitter.Splitter, mermaid bool, opts ...document.WebOption) (State, error) {
	if len(urls) == 0 {
		urls = BlogURLs
	}
	store, err := Index(ctx, env, urls, split, opts...)
	if err != nil {
		return State{}, err
	}
	retriever, err := RetrieverTool(store)
	if err != nil {
		return State{}, err
	}
	popts := []Option{WithLogger(env.Log())}
	if env.Metrics != nil {
		popts = append(popts, WithObserver(env.Metrics))
	}
	p, err := New(env.Model, retriever, popts...)
	if err != nil {
		return State{}, err
	}

	out := env.Writer()
	if mermaid {
		fmt.Fprintln(out, p.Mermaid())
	}
	var printErr error
	final, err := p.Stream(ctx, Question, func(node string, update []llms.MessageContent, s State) {
		fmt.Fprintf(out, "Update from node %s\n", node)
		if last, ok := message.Last(update); ok {
			if err := message.Pretty(out, last); err != nil && printErr == nil {
				printErr = err
			}
		} else {
			fmt.Fprintf(out, "{grade: %s, rewrites: %d}\n", s.Grade, s.Rewrites)
		}
		fmt.Fprint(out, "\n\n")
	})
	if err != nil {
		return final, err
	}
	return final, printErr
}
