// Package pipeline runs a question through transcription, translation,
// summarization, synthesis and logging.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/upb/voice-agent/internal/observability"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"go.uber.org/zap"
)

// ApologyText is spoken when the question could not be answered
const ApologyText = "I'm sorry, I couldn't process your database query. Please try rephrasing your question."

// Transcriber turns audio into a question
type Transcriber interface {
	Transcribe(ctx context.Context, blob models.AudioBlob) (string, error)
}

// Translator answers a question from the database
type Translator interface {
	Translate(ctx context.Context, question string, schema models.SchemaContext) (*models.QueryResult, error)
}

// Summarizer phrases a query result as an answer
type Summarizer interface {
	Summarize(ctx context.Context, question string, result *models.QueryResult) (string, error)
}

// Speaker synthesizes an answer
type Speaker interface {
	Synthesize(ctx context.Context, text string) (*models.AudioResponse, error)
}

// InteractionLogger records completed exchanges; it never fails the run
type InteractionLogger interface {
	Record(ctx context.Context, rec *models.InteractionRecord) bool
}

// Timeouts are per-stage budgets derived from the request context. Zero
// means the stage is bounded only by the request.
type Timeouts struct {
	Transcription time.Duration
	Translation   time.Duration
	Summarization time.Duration
	Synthesis     time.Duration
}

// Options configures a Pipeline
type Options struct {
	Timeouts             Timeouts
	Schema               models.SchemaContext
	LogVoiceInteractions bool
	LogTextInteractions  bool
}

// VoiceResult is the outcome of a voice run that produced audio
type VoiceResult struct {
	Audio    *models.AudioResponse
	Degraded bool
	Question string
	Answer   string
	// FailedStage is set when Degraded
	FailedStage Stage
	// Cause is the error that triggered degradation
	Cause error
}

// TextResult is the outcome of a text run
type TextResult struct {
	Query     string    `json:"query"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Pipeline orchestrates the query stages. It holds no per-request state.
type Pipeline struct {
	transcriber  Transcriber
	translator   Translator
	summarizer   Summarizer
	speaker      Speaker
	interactions InteractionLogger
	opts         Options
	metrics      observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a new pipeline
func New(
	transcriber Transcriber,
	translator Translator,
	summarizer Summarizer,
	speaker Speaker,
	interactions InteractionLogger,
	opts Options,
	metrics observability.Metrics,
	logger *zap.Logger,
) *Pipeline {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Pipeline{
		transcriber:  transcriber,
		translator:   translator,
		summarizer:   summarizer,
		speaker:      speaker,
		interactions: interactions,
		opts:         opts,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// RunVoice answers a spoken question with speech. Failures before synthesis
// produce the apology audio and no interaction record; a synthesis failure is
// returned as SynthesisFailed.
func (p *Pipeline) RunVoice(ctx context.Context, caller *models.Caller, blob models.AudioBlob) (*VoiceResult, error) {
	if caller == nil {
		return nil, services.ErrUnauthenticated
	}
	log := observability.LoggerFromContext(ctx, p.logger)
	log.Info("voice query started", zap.Int("audio_bytes", len(blob.Data)), zap.String("format", blob.Format))

	var question string
	err := p.runStage(ctx, StageTranscribing, p.opts.Timeouts.Transcription, func(ctx context.Context) error {
		var err error
		question, err = p.transcriber.Transcribe(ctx, blob)
		return err
	})
	if err != nil {
		return p.degrade(ctx, log, StageTranscribing, err)
	}
	log.Info("question transcribed", zap.String("question", question))

	var result *models.QueryResult
	err = p.runStage(ctx, StageTranslating, p.opts.Timeouts.Translation, func(ctx context.Context) error {
		var err error
		result, err = p.translator.Translate(ctx, question, p.opts.Schema)
		return err
	})
	if err != nil {
		return p.degrade(ctx, log, StageTranslating, err)
	}

	var answer string
	err = p.runStage(ctx, StageSummarizing, p.opts.Timeouts.Summarization, func(ctx context.Context) error {
		var err error
		answer, err = p.summarizer.Summarize(ctx, question, result)
		return err
	})
	if err != nil {
		return p.degrade(ctx, log, StageSummarizing, err)
	}

	var audio *models.AudioResponse
	err = p.runStage(ctx, StageSynthesizing, p.opts.Timeouts.Synthesis, func(ctx context.Context) error {
		var err error
		audio, err = p.speaker.Synthesize(ctx, answer)
		return err
	})
	if err != nil {
		return nil, p.fatal(log, "voice", err)
	}

	if p.opts.LogVoiceInteractions {
		p.record(ctx, caller, question, answer, result, models.EntryPathVoice)
	}

	p.metrics.RecordOutcome(string(models.EntryPathVoice), string(StageDone))
	log.Info("voice query completed", zap.Int("audio_bytes", len(audio.Data)))

	audio.Filename = models.ResponseFilename
	return &VoiceResult{
		Audio:    audio,
		Question: question,
		Answer:   answer,
	}, nil
}

// RunText answers a typed question with the raw translator output
func (p *Pipeline) RunText(ctx context.Context, caller *models.Caller, text string) (*TextResult, error) {
	if caller == nil {
		return nil, services.ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.ErrEmptyQuery
	}
	log := observability.LoggerFromContext(ctx, p.logger)

	var result *models.QueryResult
	err := p.runStage(ctx, StageTranslating, p.opts.Timeouts.Translation, func(ctx context.Context) error {
		var err error
		result, err = p.translator.Translate(ctx, text, p.opts.Schema)
		return err
	})
	if err != nil {
		p.metrics.RecordOutcome(string(models.EntryPathText), "failed")
		log.Error("text query failed", zap.String("stage", string(StageTranslating)), zap.Error(err))
		return nil, err
	}

	if p.opts.LogTextInteractions {
		p.record(ctx, caller, text, result.String(), result, models.EntryPathText)
	}

	p.metrics.RecordOutcome(string(models.EntryPathText), string(StageDone))
	return &TextResult{
		Query:     text,
		Result:    result.String(),
		Timestamp: p.now(),
	}, nil
}

// runStage bounds fn by budget, converts panics to Unexpected and observes latency
func (p *Pipeline) runStage(ctx context.Context, stage Stage, budget time.Duration, fn func(ctx context.Context) error) (err error) {
	stageCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = services.NewDomainError(services.ErrorTypeUnexpected, "stage panicked", fmt.Errorf("%v", r)).
				WithDetail("stage", string(stage))
		}
		p.metrics.ObserveStage(string(stage), time.Since(start), err)
	}()

	return fn(stageCtx)
}

func (p *Pipeline) degrade(ctx context.Context, log *zap.Logger, failed Stage, cause error) (*VoiceResult, error) {
	if !failed.Degradable() {
		return nil, p.fatal(log, "voice", cause)
	}
	log.Warn("voice query degraded to apology",
		zap.String("stage", string(failed)),
		zap.String("error_type", string(services.GetErrorType(cause))),
		zap.Error(cause))

	var audio *models.AudioResponse
	err := p.runStage(ctx, StageDegrading, p.opts.Timeouts.Synthesis, func(ctx context.Context) error {
		var err error
		audio, err = p.speaker.Synthesize(ctx, ApologyText)
		return err
	})
	if err != nil {
		return nil, p.fatal(log, "voice", err)
	}

	p.metrics.RecordOutcome(string(models.EntryPathVoice), "degraded")
	audio.Filename = models.ErrorFilename
	return &VoiceResult{
		Audio:       audio,
		Degraded:    true,
		FailedStage: failed,
		Cause:       cause,
	}, nil
}

func (p *Pipeline) fatal(log *zap.Logger, entryPath string, err error) error {
	p.metrics.RecordOutcome(entryPath, string(StageFatal))
	log.Error("speech synthesis failed", zap.String("stage", string(StageSynthesizing)), zap.Error(err))
	if services.IsSynthesisError(err) {
		return err
	}
	return services.WrapError(services.ErrorTypeSynthesisFailed, services.ErrSynthesisFailed.Message, err)
}

// record writes on a context that survives client disconnects; the logger
// applies its own budget.
func (p *Pipeline) record(ctx context.Context, caller *models.Caller, question, answer string, result *models.QueryResult, path models.EntryPath) {
	rec := models.NewInteractionRecord(caller.ID, question, answer, result, path)
	rec.CreatedAt = p.now().UTC()
	p.interactions.Record(context.WithoutCancel(ctx), rec)
}
