package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/claytonlow/twilio-deepgram/internal/metrics"
)

var (
	// ErrCapabilityNotFound is returned for a function name nothing is registered under.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrMissingQuestion is returned when a call arrives without a question.
	ErrMissingQuestion = errors.New("function call has no question")
)

// Capability answers a question on behalf of the agent.
type Capability interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// CapabilityFunc adapts a plain function to Capability.
type CapabilityFunc func(ctx context.Context, question string) (string, error)

func (f CapabilityFunc) Invoke(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// Call is one function-call request from the agent.
type Call struct {
	Name     string
	ID       string
	Question string
}

// Dispatcher routes function calls to registered capabilities. It is
// read-only after New and safe for concurrent use.
type Dispatcher struct {
	caps   map[string]Capability
	logger *zap.Logger
}

// New copies caps; later changes to the map do not affect the dispatcher.
func New(caps map[string]Capability, logger *zap.Logger) *Dispatcher {
	copied := make(map[string]Capability, len(caps))
	for name, c := range caps {
		if c != nil {
			copied[name] = c
		}
	}
	return &Dispatcher{caps: copied, logger: logger}
}

// Names returns the registered capability names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.caps))
	for name := range d.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the capability registered under call.Name and returns its text.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (string, error) {
	c, ok := d.caps[call.Name]
	if !ok {
		metrics.FunctionCallsTotal.WithLabelValues("unknown", "not_found").Inc()
		return "", fmt.Errorf("%w: %q", ErrCapabilityNotFound, call.Name)
	}
	if strings.TrimSpace(call.Question) == "" {
		metrics.FunctionCallsTotal.WithLabelValues(call.Name, "missing_question").Inc()
		return "", fmt.Errorf("%s: %w", call.Name, ErrMissingQuestion)
	}

	metrics.FunctionCallsInFlight.Inc()
	start := time.Now()
	text, err := c.Invoke(ctx, call.Question)
	elapsed := time.Since(start)
	metrics.FunctionCallsInFlight.Dec()
	metrics.FunctionCallLatency.WithLabelValues(call.Name).Observe(float64(elapsed.Milliseconds()))

	if err != nil {
		metrics.FunctionCallsTotal.WithLabelValues(call.Name, "error").Inc()
		return "", fmt.Errorf("invoke %s: %w", call.Name, err)
	}
	metrics.FunctionCallsTotal.WithLabelValues(call.Name, "ok").Inc()
	d.logger.Info("function call completed",
		zap.String("name", call.Name),
		zap.String("callId", call.ID),
		zap.Int64("latencyMs", elapsed.Milliseconds()),
	)
	return text, nil
}
