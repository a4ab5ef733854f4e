package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/mixture-ml/mixture/backend/cpu"
	"github.com/mixture-ml/mixture/nn"
	"github.com/mixture-ml/mixture/tensor"
)

// routeConfig is the JSON config file surface: the router configuration
// plus the shape of the synthetic token batch to route.
type routeConfig struct {
	Router   nn.RouterConfig `json:"router"`
	Batch    int             `json:"batch"`
	SeqLen   int             `json:"seq_len"`
	Capacity int             `json:"capacity"`
	Seed     int64           `json:"seed"`
}

func routeCmd() *cli.Command {
	var (
		configPath string
		routerType string
		hidden     int64
		experts    int64
		selected   int64
		capacity   int64
		batch      int64
		seqLen     int64
		jitter     float64
		bpr        bool
		training   bool
		seed       int64
	)

	return &cli.Command{
		Name:  "route",
		Usage: "Route a random token batch and report expert utilization",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a JSON routing config (overrides flags)",
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "router-type",
				Usage:       "tokens_choose or experts_choose",
				Value:       string(nn.TokensChooseExperts),
				Destination: &routerType,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "token representation width",
				Value:       64,
				Destination: &hidden,
			},
			&cli.Int64Flag{
				Name:        "experts",
				Aliases:     []string{"e"},
				Usage:       "number of experts",
				Value:       8,
				Destination: &experts,
			},
			&cli.Int64Flag{
				Name:        "selected",
				Aliases:     []string{"k"},
				Usage:       "experts selected per token (tokens_choose only)",
				Value:       1,
				Destination: &selected,
			},
			&cli.Int64Flag{
				Name:        "capacity",
				Usage:       "capacity slots per expert",
				Value:       16,
				Destination: &capacity,
			},
			&cli.Int64Flag{
				Name:        "batch",
				Aliases:     []string{"b"},
				Usage:       "batch size (routing groups)",
				Value:       2,
				Destination: &batch,
			},
			&cli.Int64Flag{
				Name:        "seq-len",
				Aliases:     []string{"s"},
				Usage:       "tokens per group",
				Value:       64,
				Destination: &seqLen,
			},
			&cli.Float64Flag{
				Name:        "jitter",
				Usage:       "multiplicative jitter noise half-width",
				Destination: &jitter,
			},
			&cli.BoolFlag{
				Name:        "bpr",
				Usage:       "batch-prioritized routing (tokens_choose only)",
				Destination: &bpr,
			},
			&cli.BoolFlag{
				Name:        "training",
				Usage:       "route in training mode (enables jitter)",
				Destination: &training,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed for tokens, weights and jitter",
				Value:       1,
				Destination: &seed,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := routeConfig{
				Router: nn.RouterConfig{
					Type:                    nn.RouterType(routerType),
					HiddenDim:               int(hidden),
					NumExperts:              int(experts),
					NumSelectedExperts:      int(selected),
					JitterNoise:             float32(jitter),
					BatchPrioritizedRouting: bpr,
				},
				Batch:    int(batch),
				SeqLen:   int(seqLen),
				Capacity: int(capacity),
				Seed:     seed,
			}
			if configPath != "" {
				data, err := os.ReadFile(configPath)
				if err != nil {
					return fmt.Errorf("read config: %w", err)
				}
				if err := json.Unmarshal(data, &cfg); err != nil {
					return fmt.Errorf("parse config %s: %w", configPath, err)
				}
			}
			return runRoute(cfg, training)
		},
	}
}

func runRoute(cfg routeConfig, training bool) error {
	if cfg.Batch <= 0 || cfg.SeqLen <= 0 {
		return fmt.Errorf("batch and seq_len must be positive, got %d and %d", cfg.Batch, cfg.SeqLen)
	}
	if cfg.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", cfg.Capacity)
	}

	backend := cpu.New()
	rng := rand.New(rand.NewSource(cfg.Seed))

	router, err := nn.NewRouter(backend, cfg.Router, rng)
	if err != nil {
		return err
	}

	tokens := tensor.Randn[float32](tensor.Shape{cfg.Batch, cfg.SeqLen, cfg.Router.HiddenDim}, backend)
	out := router.Route(tokens, cfg.Capacity, nn.RouteOptions{Training: training, RNG: rng})

	// Slots used per expert, summed over groups, tokens and capacity.
	used := tensor.Cast[float32](out.DispatchMask).
		SumDim(3, false).SumDim(1, false).SumDim(0, false)

	totalSlots := cfg.Batch * cfg.Capacity
	var assigned int
	fmt.Printf("router: %s  experts=%d  capacity=%d  tokens=%d\n",
		cfg.Router.Type, cfg.Router.NumExperts, cfg.Capacity, cfg.Batch*cfg.SeqLen)
	for e, u := range used.Data() {
		assigned += int(u)
		fmt.Printf("  expert %2d: %4.0f/%d slots (%5.1f%%)\n",
			e, u, totalSlots, 100*float64(u)/float64(totalSlots))
	}

	if cfg.Router.Type == nn.TokensChooseExperts {
		requests := cfg.Batch * cfg.SeqLen * cfg.Router.NumSelectedExperts
		fmt.Printf("dropped: %d of %d expert requests\n", requests-assigned, requests)
	}
	fmt.Printf("auxiliary loss: %.6f\n", out.AuxiliaryLoss)
	fmt.Printf("router z-loss:  %.6f\n", out.RouterZLoss)
	return nil
}
