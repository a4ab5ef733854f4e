package nn

import (
	"fmt"
	"math/rand"

	"github.com/mixture-ml/mixture/internal/tensor"
)

// RouterType selects the sparse routing strategy.
type RouterType string

const (
	// TokensChooseExperts routes each token to its top-k experts by
	// probability (Switch Transformer style with k=1).
	TokensChooseExperts RouterType = "tokens_choose"

	// ExpertsChooseTokens lets each expert pick its top-capacity tokens by
	// affinity. A token may be picked by zero or several experts.
	ExpertsChooseTokens RouterType = "experts_choose"
)

// RouterConfig holds the immutable configuration of a sparse router.
type RouterConfig struct {
	// Type selects the routing strategy.
	Type RouterType `json:"router_type"`

	// HiddenDim is the token representation width H.
	HiddenDim int `json:"hidden_dim"`

	// NumExperts is the number of experts E.
	NumExperts int `json:"num_experts"`

	// NumSelectedExperts is the top-k per token for tokens-choose routing.
	// Ignored by experts-choose routing.
	NumSelectedExperts int `json:"num_selected_experts"`

	// JitterNoise is the multiplicative noise half-width ε. During training
	// inputs are scaled element-wise by uniform values in [1-ε, 1+ε].
	// Zero disables jitter.
	JitterNoise float32 `json:"jitter_noise"`

	// BatchPrioritizedRouting sorts tokens by their top routing probability
	// (descending) before capacity slots are assigned, so high-confidence
	// tokens win scarce capacity. Only meaningful for tokens-choose routing.
	BatchPrioritizedRouting bool `json:"batch_prioritized_routing"`
}

// Validate reports whether the configuration is usable.
func (c RouterConfig) Validate() error {
	switch c.Type {
	case TokensChooseExperts, ExpertsChooseTokens:
	default:
		return fmt.Errorf("nn: unknown router type %q", c.Type)
	}
	if c.HiddenDim <= 0 {
		return fmt.Errorf("nn: hidden_dim must be positive, got %d", c.HiddenDim)
	}
	if c.NumExperts <= 0 {
		return fmt.Errorf("nn: num_experts must be positive, got %d", c.NumExperts)
	}
	if c.Type == TokensChooseExperts {
		if c.NumSelectedExperts <= 0 {
			return fmt.Errorf("nn: num_selected_experts must be positive, got %d", c.NumSelectedExperts)
		}
		if c.NumSelectedExperts > c.NumExperts {
			return fmt.Errorf("nn: num_selected_experts %d exceeds num_experts %d",
				c.NumSelectedExperts, c.NumExperts)
		}
	}
	if c.JitterNoise < 0 {
		return fmt.Errorf("nn: jitter_noise must be non-negative, got %v", c.JitterNoise)
	}
	return nil
}

// RouteOptions carries the per-call routing mode.
type RouteOptions struct {
	// Training gates jitter noise. Inference calls leave it false.
	Training bool

	// RNG drives jitter noise. Required when Training is true and the
	// router has non-zero jitter; callers own the seed for reproducibility.
	RNG *rand.Rand
}

// RouterOutput is the result of one routing forward pass.
//
// DispatchMask and CombineArray have shape [batch, seq, experts, capacity].
// CombineArray is zero wherever DispatchMask is false; a token dropped for
// capacity has an all-zero row for that expert, so the consumer's
// scatter/gather leaves its output untouched.
type RouterOutput[B tensor.Backend] struct {
	DispatchMask  *tensor.Tensor[bool, B]
	CombineArray  *tensor.Tensor[float32, B]
	AuxiliaryLoss float32
	RouterZLoss   float32
}

// Router assigns tokens to experts under a per-expert capacity budget.
type Router[B tensor.Backend] interface {
	// Route maps tokens [batch, seq, hidden] to a capacity-constrained
	// expert assignment. expertCapacity must be positive; the hidden
	// dimension must match the router weight, both checked by panic.
	Route(tokens *tensor.Tensor[float32, B], expertCapacity int, opts RouteOptions) RouterOutput[B]

	// Parameters returns the router projection weight.
	Parameters() []*Parameter[B]
}

// NewRouter creates a router of the configured type with a freshly
// initialized projection weight.
func NewRouter[B tensor.Backend](backend B, cfg RouterConfig, rng *rand.Rand) (Router[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("nn: router initialization requires a random source")
	}
	weight := XavierUniform(backend, cfg.HiddenDim, cfg.NumExperts, rng)
	return NewRouterFromWeight(cfg, weight)
}

// NewRouterFromWeight creates a router of the configured type around an
// existing projection weight of shape [hidden_dim, num_experts].
func NewRouterFromWeight[B tensor.Backend](cfg RouterConfig, weight *tensor.Tensor[float32, B]) (Router[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ws := weight.Shape()
	if len(ws) != 2 || ws[0] != cfg.HiddenDim || ws[1] != cfg.NumExperts {
		return nil, fmt.Errorf("nn: router weight shape %v does not match [%d, %d]",
			ws, cfg.HiddenDim, cfg.NumExperts)
	}
	base := routerBase[B]{cfg: cfg, weight: NewParameter("router.weight", weight)}
	switch cfg.Type {
	case TokensChooseExperts:
		return &TokensChooseRouter[B]{routerBase: base}, nil
	case ExpertsChooseTokens:
		return &ExpertsChooseRouter[B]{routerBase: base}, nil
	default:
		return nil, fmt.Errorf("nn: unknown router type %q", cfg.Type)
	}
}

// routerBase holds the projection weight and scoring logic shared by both
// routing strategies.
type routerBase[B tensor.Backend] struct {
	cfg    RouterConfig
	weight *Parameter[B]
}

// Parameters returns the router projection weight.
func (r *routerBase[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{r.weight}
}

// Config returns the router configuration.
func (r *routerBase[B]) Config() RouterConfig { return r.cfg }

// score computes router logits and probabilities, both [batch, seq, experts].
//
// Jitter noise is applied multiplicatively to the inputs when training with
// a non-zero noise width; the softmax over the expert axis is max-subtracted
// for stability in the backend kernel.
func (r *routerBase[B]) score(tokens *tensor.Tensor[float32, B], opts RouteOptions) (logits, probs *tensor.Tensor[float32, B]) {
	shape := tokens.Shape()
	if len(shape) != 3 {
		panic(fmt.Sprintf("nn: router input must be 3D [batch, seq, hidden], got shape %v", shape))
	}
	if shape[2] != r.cfg.HiddenDim {
		panic(fmt.Sprintf("nn: router input hidden dim %d does not match weight hidden dim %d",
			shape[2], r.cfg.HiddenDim))
	}
	batch, seq := shape[0], shape[1]

	if opts.Training && r.cfg.JitterNoise > 0 {
		if opts.RNG == nil {
			panic("nn: jitter noise requires RouteOptions.RNG during training")
		}
		eps := float64(r.cfg.JitterNoise)
		noise := make([]float32, tokens.NumElements())
		for i := range noise {
			noise[i] = float32(1 - eps + opts.RNG.Float64()*2*eps)
		}
		noiseT, err := tensor.FromSlice(noise, shape.Clone(), tokens.Backend())
		if err != nil {
			panic(err)
		}
		tokens = tokens.Mul(noiseT)
	}

	flat := tokens.Reshape(batch*seq, r.cfg.HiddenDim)
	logits = flat.MatMul(r.weight.Data).Reshape(batch, seq, r.cfg.NumExperts)
	probs = logits.Softmax(2)
	return logits, probs
}

func checkCapacity(expertCapacity int) {
	if expertCapacity <= 0 {
		panic(fmt.Sprintf("nn: expert capacity must be positive, got %d", expertCapacity))
	}
}
