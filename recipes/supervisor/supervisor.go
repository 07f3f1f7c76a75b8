// Package supervisor is a personal assistant that delegates to a calendar
// agent and an email agent wrapped as tools. Creating events and sending
// mail wait for a human decision.
package supervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/agentkit-go/ragagents/agent"
	"github.com/agentkit-go/ragagents/checkpoint"
	"github.com/agentkit-go/ragagents/message"
	"github.com/agentkit-go/ragagents/recipes"
	"github.com/agentkit-go/ragagents/tool"
)

const (
	CalendarPrompt = "You are a calendar scheduling assistant. " +
		"Parse natural language scheduling requests (e.g., 'next Tuesday at 2pm') " +
		"into proper ISO datetime formats. " +
		"Use get_available_time_slots to check availability when needed. " +
		"Use create_calendar_event to schedule events. " +
		"Always confirm what was scheduled in your final response."

	EmailPrompt = "You are an email assistant. " +
		"Compose professional emails based on natural language requests. " +
		"Extract recipient information and craft appropriate subject lines and body text. " +
		"Use send_email to send the message. " +
		"Always confirm what was sent in your final response."

	SupervisorPrompt = "You are a helpful personal assistant. " +
		"You can schedule calendar events and send emails. " +
		"Break down user requests into appropriate tool calls and coordinate the results. " +
		"When a request involves multiple actions, use multiple tools in sequence."

	ScheduleEventDescription = `Schedule calendar events using natural language.

Use this when the user wants to create, modify, or check calendar appointments.
Handles date/time parsing, availability checking, and event creation.

Input: Natural language scheduling request (e.g., 'meeting with design team
next Tuesday at 2pm')`

	ManageEmailDescription = `Send emails using natural language.

Use this when the user wants to send notifications, reminders, or any email
communication. Handles recipient extraction, subject generation, and email
composition.

Input: Natural language email request (e.g., 'send them a reminder about
the meeting')`
)

// ThreadID is the supervisor conversation.
const ThreadID = "6"

// Query is the request the recipe sends.
const Query = "Schedule a meeting with the design team next Tuesday at 2pm for 1 hour, " +
	"and send them an email reminder about reviewing the new mockups."

// TimeSlots is what get_available_time_slots reports.
var TimeSlots = []string{"09:00", "14:00", "16:00"}

type EventArgs struct {
	Title     string   `json:"title" jsonschema:"event title"`
	StartTime string   `json:"start_time" jsonschema:"ISO start, e.g. 2024-01-15T14:00:00"`
	EndTime   string   `json:"end_time" jsonschema:"ISO end, e.g. 2024-01-15T15:00:00"`
	Attendees []string `json:"attendees" jsonschema:"attendee email addresses"`
	Location  string   `json:"location,omitempty"`
}

type EmailArgs struct {
	To      []string `json:"to" jsonschema:"recipient email addresses"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Cc      []string `json:"cc,omitempty"`
}

type SlotArgs struct {
	Attendees       []string `json:"attendees"`
	Date            string   `json:"date" jsonschema:"ISO date, e.g. 2024-01-15"`
	DurationMinutes int      `json:"duration_minutes"`
}

// CalendarTools returns create_calendar_event and get_available_time_slots.
func CalendarTools() ([]tool.Tool, error) {
	create, err := tool.New("create_calendar_event", "Create a calendar event. Requires exact ISO datetime format.",
		func(_ context.Context, a EventArgs) (string, error) {
			return fmt.Sprintf("Event created: %s from %s to %s with %d attendees",
				a.Title, a.StartTime, a.EndTime, len(a.Attendees)), nil
		})
	if err != nil {
		return nil, err
	}
	slots, err := tool.New("get_available_time_slots", "Check calendar availability for given attendees on a specific date.",
		func(_ context.Context, _ SlotArgs) (string, error) {
			data, err := json.Marshal(TimeSlots)
			return string(data), err
		})
	if err != nil {
		return nil, err
	}
	return []tool.Tool{create, slots}, nil
}

// EmailTools returns send_email.
func EmailTools() ([]tool.Tool, error) {
	send, err := tool.New("send_email", "Send an email via email API. Requires properly formatted addresses.",
		func(_ context.Context, a EmailArgs) (string, error) {
			return fmt.Sprintf("Email sent to %s - Subject: %s", strings.Join(a.To, ", "), a.Subject), nil
		})
	if err != nil {
		return nil, err
	}
	return []tool.Tool{send}, nil
}

// Models lets each agent use its own chat model.
type Models struct {
	Supervisor llms.Model
	Calendar   llms.Model
	Email      llms.Model
}

// New builds the supervisor with one model for every agent.
func New(model llms.Model, saver checkpoint.Saver, opts ...agent.Option) (*agent.Agent, error) {
	return Build(Models{Supervisor: model, Calendar: model, Email: model}, saver, opts...)
}

// Build wires the calendar and email agents under the supervisor. opts apply
// to all three agents.
func Build(m Models, saver checkpoint.Saver, opts ...agent.Option) (*agent.Agent, error) {
	calTools, err := CalendarTools()
	if err != nil {
		return nil, err
	}
	calendar, err := agent.New(m.Calendar, calTools, append([]agent.Option{
		agent.WithName("calendar_agent"),
		agent.WithSystemPrompt(CalendarPrompt),
		agent.WithHumanInTheLoop(agent.HITLConfig{
			InterruptOn:       map[string]bool{"create_calendar_event": true},
			DescriptionPrefix: "Calendar event pending approval",
		}),
	}, opts...)...)
	if err != nil {
		return nil, err
	}

	mailTools, err := EmailTools()
	if err != nil {
		return nil, err
	}
	email, err := agent.New(m.Email, mailTools, append([]agent.Option{
		agent.WithName("email_agent"),
		agent.WithSystemPrompt(EmailPrompt),
		agent.WithHumanInTheLoop(agent.HITLConfig{
			InterruptOn:       map[string]bool{"send_email": true},
			DescriptionPrefix: "Outbound email pending approval",
		}),
	}, opts...)...)
	if err != nil {
		return nil, err
	}

	scheduleEvent, err := agent.AsTool(calendar, "schedule_event", ScheduleEventDescription)
	if err != nil {
		return nil, err
	}
	manageEmail, err := agent.AsTool(email, "manage_email", ManageEmailDescription)
	if err != nil {
		return nil, err
	}
	return agent.New(m.Supervisor, []tool.Tool{scheduleEvent, manageEmail}, append([]agent.Option{
		agent.WithName("supervisor"),
		agent.WithSystemPrompt(SupervisorPrompt),
		agent.WithCheckpointer(saver),
	}, opts...)...)
}

// Approver decides on pending interrupts.
type Approver func(interrupts []agent.Interrupt) (agent.Command, error)

// AutoApprove approves everything.
func AutoApprove(interrupts []agent.Interrupt) (agent.Command, error) {
	return agent.ApproveAll(interrupts), nil
}

// PromptApprover asks on out and reads one y/n answer per action request
// from in. Anything but y or yes rejects the call.
func PromptApprover(in io.Reader, out io.Writer) Approver {
	sc := bufio.NewScanner(in)
	return func(interrupts []agent.Interrupt) (agent.Command, error) {
		cmd := agent.Command{Resume: make(map[string][]agent.Decision, len(interrupts))}
		for _, it := range interrupts {
			for _, req := range it.ActionRequests {
				fmt.Fprintf(out, "Approve %s? [y/N] ", req.Name)
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return agent.Command{}, err
					}
					return agent.Command{}, io.ErrUnexpectedEOF
				}
				d := agent.Decision{Type: agent.DecisionReject}
				switch strings.ToLower(strings.TrimSpace(sc.Text())) {
				case "y", "yes":
					d = agent.Decision{Type: agent.DecisionApprove}
				}
				cmd.Resume[it.ID] = append(cmd.Resume[it.ID], d)
			}
		}
		return cmd, nil
	}
}

// Run sends Query on ThreadID, prints every update, and whenever the run
// stops for review prints the pending requests and resumes with the
// approver's decisions.
func Run(ctx context.Context, env *recipes.Env, approve Approver) (agent.State, error) {
	saver := env.Saver
	if saver == nil {
		saver = checkpoint.NewMemory()
	}
	sup, err := New(env.Model, saver, env.AgentOptions()...)
	if err != nil {
		return agent.State{}, err
	}
	out := env.Writer()
	cfg := agent.RunConfig{ThreadID: ThreadID}

	events := sup.Stream(ctx, agent.Ask(Query), cfg)
	for {
		final, pending, err := drain(out, events)
		if err != nil {
			return final, err
		}
		if len(pending) == 0 {
			return final, nil
		}
		for _, it := range pending {
			for _, req := range it.ActionRequests {
				fmt.Fprintf(out, "INTERRUPTED: %s\n", it.ID)
				fmt.Fprintf(out, "%s\n\n", req.Description)
			}
		}
		cmd, err := approve(pending)
		if err != nil {
			return final, err
		}
		events = sup.StreamResume(ctx, cmd, cfg)
	}
}

func drain(out io.Writer, events <-chan agent.Event) (agent.State, []agent.Interrupt, error) {
	var (
		final   agent.State
		pending []agent.Interrupt
		runErr  error
	)
	for ev := range events {
		if !ev.Done {
			if err := message.PrettyAll(out, ev.Update); err != nil && runErr == nil {
				runErr = err
			}
			continue
		}
		final, pending = ev.State, ev.Interrupts
		var ie *agent.InterruptError
		if ev.Err != nil && !errors.As(ev.Err, &ie) {
			runErr = ev.Err
		}
		if runErr != nil {
			pending = nil
		}
	}
	return final, pending, runErr
}
