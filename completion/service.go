// Package completion implements core.CompletionService on top of a
// model.Model with function calling.
//
// A ModelService answers one dispatch by looping model calls: capability calls
// are executed and fed back, a transfer_to_agent call ends the dispatch with a
// core.Transfer, and plain text ends it with a core.FinalReply. The model
// never decides legality; the router checks every transfer against the
// delegation table.
package completion

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentrouter/core"
	"github.com/hupe1980/agentrouter/internal/util"
	"github.com/hupe1980/agentrouter/logging"
	"github.com/hupe1980/agentrouter/model"
	"github.com/hupe1980/agentrouter/tool"
)

// Defaults applied by NewModelService.
const (
	DefaultMaxModelCalls      = 8
	DefaultMaxHistoryMessages = 20
)

// Options configures a ModelService.
type Options struct {
	// History loads prior turns and records completed ones. Nil makes the
	// service stateless.
	History core.HistoryStore

	// MaxModelCalls bounds model round trips per dispatch. 0 is unlimited.
	MaxModelCalls int

	// MaxHistoryMessages bounds the transcript sent to the model.
	MaxHistoryMessages int

	// MaxParallelTools bounds concurrent capability calls. 0 is unlimited.
	MaxParallelTools int

	Logger logging.Logger
}

// ModelService is a core.CompletionService backed by a model.
type ModelService struct {
	model model.Model
	exec  *tool.Executor
	opts  Options
}

// NewModelService creates a completion service for m.
func NewModelService(m model.Model, optFns ...func(o *Options)) *ModelService {
	opts := Options{
		MaxModelCalls:      DefaultMaxModelCalls,
		MaxHistoryMessages: DefaultMaxHistoryMessages,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	exec := tool.NewExecutor(func(o *tool.ExecutorOptions) {
		o.MaxParallel = opts.MaxParallelTools
		o.Logger = opts.Logger
	})

	return &ModelService{model: m, exec: exec, opts: opts}
}

// Model returns the wrapped model.
func (s *ModelService) Model() model.Model { return s.model }

// Respond implements core.CompletionService.
func (s *ModelService) Respond(ctx context.Context, req core.Request) (core.Outcome, error) {
	instructions, err := renderInstruction(req)
	if err != nil {
		return nil, core.NewConfigurationError("completion", "agent %s: %v", req.Agent, err)
	}

	contents, err := s.history(ctx, req)
	if err != nil {
		return nil, &core.BackendError{Agent: req.Agent, Message: "load history: " + err.Error(), Err: err}
	}
	contents = append(contents, core.NewTextContent(core.RoleUser, req.Task))

	tools := tool.Index(req.Capabilities)
	defs := make([]model.ToolDefinition, 0, len(req.Capabilities)+1)
	for _, c := range req.Capabilities {
		defs = append(defs, model.NewToolDefinition(c.Name(), c.Description(), c.Parameters()))
	}
	if len(req.Handoffs) > 0 {
		td := tool.NewTransferDefinition(req.Handoffs)
		defs = append(defs, model.NewToolDefinition(td.Name(), td.Description(), td.Parameters()))
	}

	budget := &core.CallBudget{Agent: req.Agent, Max: s.opts.MaxModelCalls}

	for {
		if err := budget.Spend(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := s.model.Generate(ctx, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        defs,
		})
		if err != nil {
			return nil, core.AsBackendError(req.Agent, err)
		}

		calls := resp.Content.FunctionCalls()

		s.opts.Logger.Debug("completion.model.call",
			"agent.name", req.Agent,
			"model.name", s.model.Info().Name,
			"model.calls", budget.Used(),
			"function.calls", len(calls),
			"finish.reason", resp.FinishReason,
			"duration.ms", time.Since(start).Milliseconds(),
		)

		if len(calls) == 0 {
			text := resp.Content.Text()
			if err := s.record(ctx, req, text); err != nil {
				return nil, &core.BackendError{Agent: req.Agent, Message: "record history: " + err.Error(), Err: err}
			}
			return core.FinalReply{Text: text}, nil
		}

		// A valid transfer ends the dispatch; sibling calls in the same
		// response are not executed.
		if target, msg, ok := findTransfer(calls); ok {
			if msg == "" {
				msg = resp.Content.Text()
			}
			if dropped := len(calls) - 1; dropped > 0 {
				s.opts.Logger.Warn("completion.calls.dropped",
					"agent.name", req.Agent,
					"handoff.target", target,
					"function.calls", dropped,
				)
			}
			s.opts.Logger.Info("completion.transfer", "agent.name", req.Agent, "handoff.target", target)
			return core.Transfer{Target: target, Text: msg}, nil
		}

		contents = append(contents, resp.Content, s.execute(ctx, req.Agent, tools, calls))
	}
}

// execute answers every call. It only runs when no transfer call parsed, so
// every transfer call here gets its parse error back and the model can
// correct itself.
func (s *ModelService) execute(
	ctx context.Context,
	agent string,
	tools map[string]tool.Tool,
	calls []core.FunctionCall,
) core.Content {
	results := make([]core.FunctionResponse, len(calls))

	var (
		pending []core.FunctionCall
		index   []int
	)
	for i, c := range calls {
		if c.Name == tool.TransferToolName {
			msg := "only one transfer per response"
			if _, _, err := tool.ParseTransfer(c.Arguments); err != nil {
				msg = err.Error()
			}
			results[i] = core.FunctionResponse{ID: c.ID, Name: c.Name, Error: msg}
			continue
		}
		pending = append(pending, c)
		index = append(index, i)
	}

	for j, r := range s.exec.Execute(ctx, agent, tools, pending) {
		results[index[j]] = r
	}

	parts := make([]core.Part, len(results))
	for i, r := range results {
		parts[i] = core.FunctionResponsePart{FunctionResponse: r}
	}
	return core.Content{Role: core.RoleTool, Parts: parts}
}

// findTransfer returns the first transfer call whose arguments parse.
func findTransfer(calls []core.FunctionCall) (target, msg string, ok bool) {
	for _, c := range calls {
		if c.Name != tool.TransferToolName {
			continue
		}
		if target, msg, err := tool.ParseTransfer(c.Arguments); err == nil {
			return target, msg, true
		}
	}
	return "", "", false
}

func (s *ModelService) history(ctx context.Context, req core.Request) ([]core.Content, error) {
	if s.opts.History == nil || req.SessionID == "" {
		return nil, nil
	}

	msgs, err := s.opts.History.Messages(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if limit := s.opts.MaxHistoryMessages; limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	contents := make([]core.Content, 0, len(msgs)+1)
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		contents = append(contents, core.ContentFromMessage(m))
	}
	return contents, nil
}

// record appends the completed exchange. Transfers are recorded by the agent
// that finally answers.
func (s *ModelService) record(ctx context.Context, req core.Request, reply string) error {
	if s.opts.History == nil || req.SessionID == "" {
		return nil
	}
	return s.opts.History.Append(ctx, req.SessionID,
		core.NewUserMessage(req.Task),
		core.NewAssistantMessage(req.Agent, reply),
	)
}

// renderInstruction expands the agent instruction with text/template. The
// template sees .agent, .description, .handoffs and .targets.
func renderInstruction(req core.Request) (string, error) {
	targets := make([]string, len(req.Handoffs))
	for i, e := range req.Handoffs {
		targets[i] = e.Target
	}

	out, err := util.RenderTemplate(req.Instruction, map[string]any{
		"agent":       req.Agent,
		"description": req.Description,
		"handoffs":    req.Handoffs,
		"targets":     targets,
	})
	if err != nil {
		return "", fmt.Errorf("render instruction: %w", err)
	}
	return out, nil
}
