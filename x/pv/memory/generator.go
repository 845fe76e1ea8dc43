package memory

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/pvgateway/x/pv"
)

// GeneratorConfig configures a Generator
type GeneratorConfig struct {
	PV        string        `mapstructure:"pv"        yaml:"pv"`
	Elements  int           `mapstructure:"elements"  yaml:"elements"`
	Amplitude float64       `mapstructure:"amplitude" yaml:"amplitude"`
	Period    time.Duration `mapstructure:"period"    yaml:"period"`
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time `mapstructure:"-" yaml:"-"`
}

// Generator periodically writes a sine waveform to a PV. The phase advances with time so
// consecutive waveforms differ.
type Generator struct {
	cfg    GeneratorConfig
	client pv.Client
	log    zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	written uint64
}

// NewGenerator validates cfg and binds the generator to client
func NewGenerator(cfg GeneratorConfig, client pv.Client, log zerolog.Logger) (*Generator, error) {
	if cfg.PV == "" {
		return nil, errors.New("generator pv name is required")
	}
	if cfg.Elements <= 0 {
		return nil, errors.New("generator elements must be positive")
	}
	if cfg.Period <= 0 {
		return nil, errors.New("generator period must be positive")
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 1000
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Generator{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "generator").Str("pv", cfg.PV).Logger(),
	}, nil
}

// Waveform computes the samples for time t
func (g *Generator) Waveform(t time.Time) []int32 {
	out := make([]int32, g.cfg.Elements)
	phase := float64(t.UnixNano()%int64(time.Minute)) / float64(time.Minute) * 2 * math.Pi
	for i := range out {
		x := 2*math.Pi*float64(i)/float64(g.cfg.Elements) + phase
		out[i] = int32(math.Round(g.cfg.Amplitude * math.Sin(x)))
	}
	return out
}

// Start begins writing waveforms until ctx is canceled or Stop is called
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})
	g.started = true

	go g.run(runCtx, g.done)
	g.log.Info().Dur("period", g.cfg.Period).Int("elements", g.cfg.Elements).Msg("Generator started")
	return nil
}

// Stop halts the generator and waits for the loop to exit
func (g *Generator) Stop(context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	cancel, done := g.cancel, g.done
	g.cancel = nil
	g.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Written returns the number of waveforms put so far
func (g *Generator) Written() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.written
}

func (g *Generator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(g.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.client.Put(ctx, g.cfg.PV, g.Waveform(g.cfg.Now())); err != nil {
				if ctx.Err() != nil {
					return
				}
				g.log.Warn().Err(err).Msg("Failed to write waveform")
				continue
			}
			g.mu.Lock()
			g.written++
			g.mu.Unlock()
		}
	}
}
