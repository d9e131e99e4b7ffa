package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/smartrepeat/internal/store"
	"go.uber.org/zap"
)

type purposeKey struct{}

// WithPurpose labels the calls made with ctx, e.g. "text-drill".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or "unlabelled".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok && v != "" {
		return v
	}
	return "unlabelled"
}

// Recorder stores every call of the wrapped provider as a generation
// event. A failure to store never fails the call.
type Recorder struct {
	Provider
	events store.EventRepo
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder wraps p.
func NewRecorder(p Provider, events store.EventRepo, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{Provider: p, events: events, logger: logger.Named("llm"), now: time.Now}
}

func (r *Recorder) Generate(ctx context.Context, req Request) (*Response, error) {
	start := r.now()
	resp, err := r.Provider.Generate(ctx, req)
	elapsed := r.now().Sub(start)

	ev := store.GenerationEventData{
		Provider:    r.Name(),
		Model:       r.ModelID(),
		Purpose:     PurposeFrom(ctx),
		LatencyMs:   elapsed.Milliseconds(),
		Success:     err == nil,
		RequestBody: transcript(req),
	}
	switch {
	case resp != nil:
		ev.Model = resp.Model
		ev.InputTokens = resp.Usage.InputTokens
		ev.OutputTokens = resp.Usage.OutputTokens
		ev.ResponseBody = resp.Text
	case err != nil:
		ev.ErrorMessage = err.Error()
		var le *Error
		if errors.As(err, &le) && le.Kind == KindTruncated {
			ev.ResponseBody = le.Partial
		}
	}

	r.logger.Debug("generation call",
		zap.String("purpose", ev.Purpose),
		zap.String("model", ev.Model),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))

	if serr := r.events.AppendGenerationEvent(ctx, ev); serr != nil {
		r.logger.Warn("could not store generation event", zap.String("purpose", ev.Purpose), zap.Error(serr))
	}
	return resp, err
}

// transcript renders req the way the event viewer shows it.
func transcript(req Request) string {
	var b strings.Builder
	if req.System != "" {
		fmt.Fprintf(&b, "[system]\n%s\n\n", req.System)
	}
	for _, m := range req.Messages {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	switch {
	case req.Schema != nil:
		fmt.Fprintf(&b, "[schema %s]\n", req.Schema.Name)
	case req.JSON:
		b.WriteString("[json mode]\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
