// Package generation talks to the text generation service and turns its
// untrusted output into payloads the drill stages can always use.
//
// A response is tried against an ordered list of parse tiers: strict JSON,
// JSON extracted from prose, repaired JSON, field-by-field recovery, and
// finally a deterministic payload built from words the caller already has.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/smartrepeat/internal/llm"
	"github.com/abhisek/smartrepeat/internal/words"
	"go.uber.org/zap"
)

// Purpose labels recorded with each generation event.
const (
	PurposeTextDrill       = "text-drill"
	PurposeWritingAnalysis = "writing-analysis"
)

var errNoProvider = errors.New("no generation provider configured")

// Config controls calls to the generation service.
type Config struct {
	// Timeout bounds one call. There is no retry; a call that fails or
	// times out falls through to the recovery tiers.
	Timeout time.Duration

	// MaxTokens is the token budget for a response.
	MaxTokens int

	// Temperature controls output randomness (0.0-1.0).
	Temperature float64
}

// DefaultConfig returns the recommended defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     45 * time.Second,
		MaxTokens:   1500,
		Temperature: 0.7,
	}
}

// Hints carries what the caller already knows, used by the last two tiers.
type Hints struct {
	Words []words.Word
	Essay string
}

// Spec describes one payload type.
type Spec[T any] struct {
	Purpose string
	Schema  *llm.Schema

	// Check enforces rules the schema cannot express.
	Check func(T) error

	// Normalize tidies a payload accepted by any tier.
	Normalize func(*T)

	// Fields recovers a payload from damaged output (tier 4).
	Fields func(raw string, h Hints) (T, error)

	// Complete fills missing required fields with placeholders (tiers 4-5).
	Complete func(*T, Hints)

	// Fallback builds the deterministic payload (tier 5).
	Fallback func(h Hints) (T, error)
}

// Result is a payload together with the tier that produced it.
type Result[T any] struct {
	Payload T
	Tier    Tier

	// Failures lists why each earlier tier was skipped.
	Failures []*TierError
}

// Degraded reports whether the payload was pieced together from loose
// fields or built without the service. Extracted and repaired payloads
// still carry the service's own structure and are not degraded.
func (r Result[T]) Degraded() bool {
	return r.Tier >= TierFields
}

// TextDrillSpec parses text drill payloads.
var TextDrillSpec = Spec[TextDrill]{
	Purpose: PurposeTextDrill,
	Schema:  TextDrillSchema,
	Check:   checkTextDrill,
	Normalize: func(d *TextDrill) {
		d.BonusVocabulary = cleanBonus(d.BonusVocabulary)
	},
	Fields:   textDrillFields,
	Complete: completeTextDrill,
	Fallback: fallbackTextDrill,
}

// WritingAnalysisSpec parses writing analysis payloads.
var WritingAnalysisSpec = Spec[WritingAnalysis]{
	Purpose: PurposeWritingAnalysis,
	Schema:  WritingAnalysisSchema,
	Check:   checkWritingAnalysis,
	Normalize: func(a *WritingAnalysis) {
		if a.Corrections == nil {
			a.Corrections = []Correction{}
		}
	},
	Fields:   writingAnalysisFields,
	Complete: completeWritingAnalysis,
	Fallback: fallbackWritingAnalysis,
}

// Gateway calls the generation service. A nil provider is allowed; every
// request then resolves to its fallback payload.
type Gateway struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger
}

// New creates a Gateway.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{provider: provider, cfg: cfg, logger: logger.Named("generation")}
}

// TextDrill generates a drill around ws.
func (g *Gateway) TextDrill(ctx context.Context, ws []words.Word) (Result[TextDrill], error) {
	return Generate(ctx, g, TextDrillSpec, BuildTextDrillRequest(ws), Hints{Words: ws})
}

// WritingAnalysis assesses essay, written as an exercise on task.
func (g *Gateway) WritingAnalysis(ctx context.Context, task []words.Word, essay string) (Result[WritingAnalysis], error) {
	return Generate(ctx, g, WritingAnalysisSpec, BuildWritingAnalysisRequest(task, essay), Hints{Words: task, Essay: essay})
}

// Generate calls the service once and resolves the response through the
// parse tiers. It returns an error wrapping ErrExhausted only if even the
// fallback payload is invalid.
func Generate[T any](ctx context.Context, g *Gateway, spec Spec[T], req llm.Request, h Hints) (Result[T], error) {
	var res Result[T]

	if req.Schema == nil {
		req.Schema = spec.Schema
	}
	raw, callErr := g.call(ctx, spec.Purpose, req)
	if callErr != nil {
		res.Failures = append(res.Failures, callErr)
	}

	for _, st := range strategies {
		p, terr := decode(spec, st, raw)
		if terr != nil {
			res.Failures = append(res.Failures, terr)
			continue
		}
		res.Payload, res.Tier = p, st.tier
		g.resolved(spec.Purpose, res.Tier, res.Failures)
		return res, nil
	}

	if spec.Fields != nil {
		p, err := spec.Fields(raw, h)
		if err != nil {
			kind := KindMalformed
			if raw == "" {
				kind = KindEmpty
			}
			res.Failures = append(res.Failures, tierErr(TierFields, kind, err))
		} else if err := finish(spec, &p, h); err != nil {
			res.Failures = append(res.Failures, tierErr(TierFields, KindSchema, err))
		} else {
			res.Payload, res.Tier = p, TierFields
			g.resolved(spec.Purpose, res.Tier, res.Failures)
			return res, nil
		}
	}

	p, err := spec.Fallback(h)
	if err == nil {
		err = finish(spec, &p, h)
	}
	if err != nil {
		res.Failures = append(res.Failures, tierErr(TierFallback, KindSchema, err))
		errs := make([]error, len(res.Failures))
		for i, f := range res.Failures {
			errs[i] = f
		}
		g.logger.Error("generation exhausted", zap.String("purpose", spec.Purpose), zap.Errors("failures", errs))
		return res, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
	}
	res.Payload, res.Tier = p, TierFallback
	g.resolved(spec.Purpose, res.Tier, res.Failures)
	return res, nil
}

// call makes the single service request. The raw text is returned even
// alongside an error when the provider hands back truncated output.
func (g *Gateway) call(ctx context.Context, purpose string, req llm.Request) (string, *TierError) {
	if g.provider == nil {
		return "", tierErr(TierStrict, KindProvider, errNoProvider)
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	ctx = llm.WithPurpose(ctx, purpose)

	req.JSON = true
	if req.MaxTokens == 0 {
		req.MaxTokens = g.cfg.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = g.cfg.Temperature
	}

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		var le *llm.Error
		if errors.As(err, &le) && le.Kind == llm.KindTruncated {
			return le.Partial, tierErr(TierStrict, KindMalformed, err)
		}
		return "", tierErr(TierStrict, KindProvider, err)
	}
	if resp == nil {
		return "", tierErr(TierStrict, KindEmpty, errEmptyResponse)
	}
	return resp.Text, nil
}

func decode[T any](spec Spec[T], st strategy, raw string) (T, *TierError) {
	var p T
	js, kind, err := st.parse(raw)
	if err != nil {
		return p, tierErr(st.tier, kind, err)
	}
	if err := llm.Validate(spec.Schema, js); err != nil {
		return p, tierErr(st.tier, KindSchema, err)
	}
	if err := json.Unmarshal(js, &p); err != nil {
		return p, tierErr(st.tier, KindMalformed, err)
	}
	if spec.Normalize != nil {
		spec.Normalize(&p)
	}
	if spec.Check != nil {
		if err := spec.Check(p); err != nil {
			return p, tierErr(st.tier, KindSchema, err)
		}
	}
	return p, nil
}

// finish completes a recovered payload and proves it against the schema.
func finish[T any](spec Spec[T], p *T, h Hints) error {
	if spec.Complete != nil {
		spec.Complete(p, h)
	}
	if spec.Normalize != nil {
		spec.Normalize(p)
	}
	js, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := llm.Validate(spec.Schema, js); err != nil {
		return err
	}
	if spec.Check != nil {
		return spec.Check(*p)
	}
	return nil
}

func (g *Gateway) resolved(purpose string, tier Tier, failures []*TierError) {
	fields := []zap.Field{
		zap.String("purpose", purpose),
		zap.Stringer("tier", tier),
		zap.Int("failed_tiers", len(failures)),
	}
	if len(failures) > 0 {
		fields = append(fields, zap.String("first_failure", failures[0].Error()))
	}
	if tier >= TierFields {
		g.logger.Warn("generation degraded", fields...)
		return
	}
	g.logger.Info("generation resolved", fields...)
}
