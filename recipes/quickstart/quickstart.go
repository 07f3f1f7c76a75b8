// Package quickstart is a weather forecaster that speaks in puns. It shows
// tools, runtime context, a structured response and thread memory.
package quickstart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/agent"
	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/tool"
)

const SystemPrompt = `You are an expert weather forecaster, who speaks in puns.

You have access to two tools:

- get_weather_for_location: use this to get the weather for a specific location
- get_user_location: use this to get the user's location

If a user asks you for the weather, make sure you know the location. If you can tell from the question that they mean wherever they are, use the get_user_location tool to find their location.`

// ThreadID is the conversation both turns run on.
const ThreadID = "1"

// Context is the runtime context of a run.
type Context struct {
	UserID string
}

// ResponseFormat is the structured answer of the forecaster.
type ResponseFormat struct {
	PunnyResponse     string `json:"punny_response" jsonschema:"a punny answer to the user"`
	WeatherConditions string `json:"weather_conditions,omitempty" jsonschema:"the weather conditions, if known"`
}

type cityArgs struct {
	City string `json:"city" jsonschema:"the city to get the weather for"`
}

// Tools returns get_weather_for_location and get_user_location.
func Tools() ([]tool.Tool, error) {
	weather, err := tool.New("get_weather_for_location", "Get weather for a given city.",
		func(ctx context.Context, args cityArgs) (string, error) {
			return fmt.Sprintf("It's always sunny in %s!", args.City), nil
		})
	if err != nil {
		return nil, err
	}
	location, err := tool.New("get_user_location", "Retrieve user information based on user ID.",
		func(ctx context.Context, _ struct{}) (string, error) {
			if c, ok := agent.RuntimeFrom[Context](ctx); ok && c.UserID == "1" {
				return "Florida", nil
			}
			return "SF", nil
		})
	if err != nil {
		return nil, err
	}
	return []tool.Tool{location, weather}, nil
}

// New builds the forecaster agent.
func New(model llms.Model, saver checkpoint.Saver, opts ...agent.Option) (*agent.Agent, error) {
	tools, err := Tools()
	if err != nil {
		return nil, err
	}
	opts = append([]agent.Option{
		agent.WithName("forecaster"),
		agent.WithSystemPrompt(SystemPrompt),
		agent.WithResponseFormat[ResponseFormat]("ResponseFormat", "Response schema for the agent."),
		agent.WithCheckpointer(saver),
	}, opts...)
	return agent.New(model, tools, opts...)
}

// Turns are the two user messages of the recipe.
var Turns = []string{
	"what is the weather in yogyakarta indonesia?",
	"thank you!",
}

// Run asks both turns on the same thread as user 1 and prints the
// structured responses.
func Run(ctx context.Context, env *recipes.Env) ([]ResponseFormat, error) {
	saver := env.Saver
	if saver == nil {
		saver = checkpoint.NewMemory()
	}
	forecaster, err := New(env.Model, saver, env.AgentOptions()...)
	if err != nil {
		return nil, err
	}
	ctx = agent.WithRuntime(ctx, Context{UserID: "1"})
	out := env.Writer()

	var responses []ResponseFormat
	for _, turn := range Turns {
		st, err := forecaster.Invoke(ctx, agent.Ask(turn), agent.RunConfig{ThreadID: ThreadID})
		if err != nil {
			return responses, err
		}
		resp, err := agent.StructuredResponse[ResponseFormat](st)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)
		data, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintf(out, "%s\n", data)
	}
	return responses, nil
}
