package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voxkey/internal/domain"
	"voxkey/internal/ports"
)

const (
	maxTokens   = 500
	temperature = 0.1
)

// Config is the settings surface the processor reads per request, so
// toggling cleanup or changing the model takes effect without a
// restart.
type Config interface {
	PromptConfig
	LLMEnabled() bool
	Model() string
	LLMTimeout() time.Duration
}

// Processor cleans dictated text through a completion backend, choosing
// the prompt by detected communication context. Each request runs on
// its own worker goroutine, tracked in a registry until it completes or
// fails. Worker failures surface through the failure callback, never as
// panics across goroutines.
type Processor struct {
	cfg       Config
	completer ports.Completer
	history   ports.HistoryStore
	log       zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewProcessor(cfg Config, completer ports.Completer, history ports.HistoryStore, log zerolog.Logger) *Processor {
	return &Processor{
		cfg:       cfg,
		completer: completer,
		history:   history,
		log:       log.With().Str("component", "llm").Logger(),
		inFlight:  map[string]struct{}{},
	}
}

// Enabled reports whether cleanup would actually run.
func (p *Processor) Enabled() bool {
	return p.cfg.LLMEnabled() && p.completer != nil
}

// InFlight reports the number of active cleanup workers.
func (p *Processor) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}

// ProcessAsync cleans text in the background and delivers the result
// through exactly one of the two callbacks. A disabled processor echoes
// the input synchronously with context unknown.
func (p *Processor) ProcessAsync(rawText string, onDone func(cleaned string, contextType domain.ContextType), onFail func(err error)) {
	if !p.Enabled() {
		onDone(rawText, domain.ContextUnknown)
		return
	}

	id := uuid.NewString()
	p.mu.Lock()
	p.inFlight[id] = struct{}{}
	p.mu.Unlock()

	go func() {
		defer p.release(id)
		defer func() {
			if r := recover(); r != nil {
				p.log.Error().Interface("panic", r).Msg("cleanup worker panicked")
				onFail(fmt.Errorf("cleanup worker panicked: %v", r))
			}
		}()

		cleaned, contextType, err := p.process(rawText)
		if err != nil {
			p.log.Warn().Err(err).Msg("cleanup failed")
			onFail(err)
			return
		}
		onDone(cleaned, contextType)
	}()
}

// release removes a worker from the registry. Exactly once per id.
func (p *Processor) release(id string) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Processor) process(rawText string) (string, domain.ContextType, error) {
	baseText, contextType := DetectContext(rawText)
	p.log.Debug().Str("context", string(contextType)).Msg("context resolved")

	start := time.Now()
	cleaned, err := p.completer.Complete(context.Background(), ports.CompletionRequest{
		Model:        p.cfg.Model(),
		SystemPrompt: systemPrompt(p.cfg, contextType),
		UserPrompt:   userPrompt(p.cfg, p.history, baseText, contextType, time.Now()),
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		Timeout:      p.cfg.LLMTimeout(),
	})
	if err != nil {
		return "", contextType, err
	}
	if cleaned == "" {
		return "", contextType, fmt.Errorf("empty completion result")
	}

	p.log.Info().
		Dur("took", time.Since(start)).
		Str("context", string(contextType)).
		Msg("cleanup finished")
	return cleaned, contextType, nil
}
