package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/schema"

	"github.com/agentkit-go/ragagents/llm/llmtest"
	"github.com/agentkit-go/ragagents/vectorstore"
)

type weatherArgs struct {
	City string `json:"city" jsonschema:"city to get the weather for"`
}

type emailArgs struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Cc      []string `json:"cc,omitempty"`
}

func TestNew_SchemaAndRun(t *testing.T) {
	weather, err := New("get_weather_for_location", "Get weather for a given city.",
		func(ctx context.Context, args weatherArgs) (string, error) {
			return "It's always sunny in " + args.City + "!", nil
		})
	require.NoError(t, err)

	assert.Equal(t, "get_weather_for_location", weather.Name())
	params := weather.Parameters()
	assert.Equal(t, "object", params["type"])
	props := params["properties"].(map[string]any)
	assert.Contains(t, props, "city")
	assert.Equal(t, []any{"city"}, toAnySlice(params["required"]))

	res, err := weather.Run(context.Background(), `{"city": "SF"}`)
	require.NoError(t, err)
	assert.Equal(t, "It's always sunny in SF!", res.Content)
	assert.Nil(t, res.Artifact)
}

func toAnySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	}
	return nil
}

func TestNew_OptionalFieldsNotRequired(t *testing.T) {
	email, err := New("send_email", "Send an email.", func(ctx context.Context, args emailArgs) (string, error) {
		return "sent to " + args.To[0], nil
	})
	require.NoError(t, err)
	required := toAnySlice(email.Parameters()["required"])
	assert.Contains(t, required, "to")
	assert.NotContains(t, required, "cc")
}

func TestRun_RepairsArguments(t *testing.T) {
	weather := Must(New("w", "", func(ctx context.Context, args weatherArgs) (string, error) {
		return args.City, nil
	}))
	res, err := weather.Run(context.Background(), `{"city": "Paris",}`)
	require.NoError(t, err)
	assert.Equal(t, "Paris", res.Content)

	_, err = weather.Run(context.Background(), `[`)
	assert.Error(t, err)
}

func TestRun_NoArguments(t *testing.T) {
	loc := Must(New("get_user_location", "Retrieve user information based on user ID.",
		func(ctx context.Context, _ struct{}) (string, error) { return "Florida", nil }))
	assert.Contains(t, loc.Parameters(), "properties")

	res, err := loc.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "Florida", res.Content)
}

func TestRun_PropagatesError(t *testing.T) {
	boom := Must(New("boom", "", func(ctx context.Context, _ struct{}) (string, error) {
		return "", errors.New("service unavailable")
	}))
	_, err := boom.Run(context.Background(), "{}")
	assert.EqualError(t, err, "service unavailable")
}

func TestMustPanics(t *testing.T) {
	assert.Panics(t, func() { Must[Tool](nil, errors.New("bad")) })
}

func TestDefinitionsAndByName(t *testing.T) {
	a := Must(New("a", "first", func(ctx context.Context, _ struct{}) (string, error) { return "", nil }))
	b := Must(New("b", "second", func(ctx context.Context, _ weatherArgs) (string, error) { return "", nil }))

	defs := Definitions([]Tool{a, b})
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "second", defs[1].Function.Description)
	assert.Equal(t, b.Parameters(), defs[1].Function.Parameters)

	byName := ByName([]Tool{a, b})
	assert.Same(t, b, byName["b"].(*Func[weatherArgs]))
}

func newBlogStore(t *testing.T) *vectorstore.Memory {
	t.Helper()
	s, err := vectorstore.FromDocuments(context.Background(), []schema.Document{
		{PageContent: "Task decomposition splits a task into subgoals.", Metadata: map[string]any{"source": "https://lilianweng.github.io/posts/2023-06-23-agent/"}},
		{PageContent: "Reward hacking exploits flaws in the reward function.", Metadata: map[string]any{"source": "https://lilianweng.github.io/posts/2024-11-28-reward-hacking/"}},
		{PageContent: "Hallucination is fabricated content.", Metadata: map[string]any{"source": "https://lilianweng.github.io/posts/2024-07-07-hallucination/"}},
	}, llmtest.NewEmbedder())
	require.NoError(t, err)
	return s
}

func TestRetriever(t *testing.T) {
	store := newBlogStore(t)
	rt, err := Retriever(vectorstore.NewRetriever(store, 2), "retrieve_blog_posts",
		"Search and return information about Lilian Weng blog posts.")
	require.NoError(t, err)
	assert.Contains(t, rt.Parameters()["properties"], "query")

	res, err := rt.Run(context.Background(), `{"query":"What does reward hacking exploit?"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "Reward hacking exploits flaws")
	assert.Contains(t, res.Content, "\n\n")
	docs, ok := res.Artifact.([]schema.Document)
	require.True(t, ok)
	assert.Len(t, docs, 2)
}

func TestContext(t *testing.T) {
	store := newBlogStore(t)
	ctxTool, err := Context(store, 1)
	require.NoError(t, err)
	assert.Equal(t, "retrieve_context", ctxTool.Name())

	res, err := ctxTool.Run(context.Background(), `{"query":"task decomposition subgoals"}`)
	require.NoError(t, err)
	assert.Equal(t,
		`Source: {"source":"https://lilianweng.github.io/posts/2023-06-23-agent/"}`+"\n"+
			"Content: Task decomposition splits a task into subgoals.",
		res.Content)
}

func TestSerialize(t *testing.T) {
	out := Serialize([]schema.Document{
		{PageContent: "a", Metadata: map[string]any{"page": 1}},
		{PageContent: "b"},
	})
	assert.Equal(t, "Source: {\"page\":1}\nContent: a\n\nSource: {}\nContent: b", out)
}

func TestAsLangChain(t *testing.T) {
	weather := Must(New("get_weather", "Get weather.", func(ctx context.Context, args weatherArgs) (string, error) {
		return "sunny in " + args.City, nil
	}))
	lc := AsLangChain(weather)
	assert.Equal(t, "get_weather", lc.Name())
	assert.Equal(t, "Get weather.", lc.Description())
	out, err := lc.Call(context.Background(), `{"city":"Oslo"}`)
	require.NoError(t, err)
	assert.Equal(t, "sunny in Oslo", out)
}
