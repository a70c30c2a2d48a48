package network

import (
	"context"
	"errors"
	"fmt"

	deep "github.com/patrikeh/go-deep"
	"github.com/patrikeh/go-deep/training"

	"StockPredictor/internal/domain/models"
	"StockPredictor/internal/domain/service"
)

// ErrNoTrainingData is returned when there is nothing to fit.
var ErrNoTrainingData = errors.New("no training pairs")

const (
	DefaultIterations     = 5000
	DefaultErrorThreshold = 0.003
	DefaultLearningRate   = 0.1
	DefaultMomentum       = 0.1
	minHidden             = 3
)

// Config holds the fixed hyperparameters of the regressor.
type Config struct {
	Iterations     int
	ErrorThreshold float64
	LearningRate   float64
	Momentum       float64
}

// DefaultConfig returns the hyperparameters used for every prediction.
func DefaultConfig() Config {
	return Config{
		Iterations:     DefaultIterations,
		ErrorThreshold: DefaultErrorThreshold,
		LearningRate:   DefaultLearningRate,
		Momentum:       DefaultMomentum,
	}
}

// Trainer fits a single-hidden-layer regression network with go-deep.
type Trainer struct {
	cfg Config
}

type Option func(*Trainer)

func WithConfig(cfg Config) Option {
	return func(t *Trainer) { t.cfg = cfg }
}

func NewTrainer(opts ...Option) *Trainer {
	t := &Trainer{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result reports how a training run ended.
type Result struct {
	Epochs int
	Loss   float64
}

// Model is a trained network plus the stats of its run.
type Model struct {
	net   *deep.Neural
	Stats Result
}

func (m *Model) Predict(input []float64) []float64 {
	return m.net.Predict(input)
}

// HiddenSize is the hidden layer width for the given input count.
func HiddenSize(inputs int) int {
	return max(minHidden, inputs/2)
}

// Train runs online SGD epochs until an epoch's mean squared error drops
// below the threshold or the iteration budget is spent. One solver lives for
// the whole run so momentum carries across epochs. ctx is checked per epoch.
func (t *Trainer) Train(ctx context.Context, pairs []models.TrainingPair) (service.Regressor, error) {
	if len(pairs) == 0 {
		return nil, ErrNoTrainingData
	}
	inputs := len(pairs[0].Input)
	examples := make(training.Examples, len(pairs))
	for i, p := range pairs {
		if len(p.Input) != inputs {
			return nil, fmt.Errorf("pair %d: input length %d, want %d", i, len(p.Input), inputs)
		}
		examples[i] = training.Example{Input: p.Input, Response: []float64{p.Label}}
	}

	net := deep.NewNeural(&deep.Config{
		Inputs:     inputs,
		Layout:     []int{HiddenSize(inputs), 1},
		Activation: deep.ActivationSigmoid,
		Mode:       deep.ModeRegression,
		Weight:     deep.NewNormal(1.0, 0.0),
		Bias:       true,
		Loss:       deep.LossMeanSquared,
	})
	solver := training.NewSGD(t.cfg.LearningRate, t.cfg.Momentum, 0, false)
	solver.Init(net.NumWeights())
	ep := newEpoch(net, solver)

	epochs := 0
	loss := meanSquaredError(net, examples)
	for epochs < t.cfg.Iterations && loss >= t.cfg.ErrorThreshold {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		examples.Shuffle()
		loss = ep.run(examples, epochs)
		epochs++
	}
	return &Model{net: net, Stats: Result{Epochs: epochs, Loss: loss}}, nil
}

// epoch holds the per-neuron delta buffers reused across passes.
type epoch struct {
	net    *deep.Neural
	solver training.Solver
	loss   deep.Loss
	deltas [][]float64
}

func newEpoch(net *deep.Neural, solver training.Solver) *epoch {
	deltas := make([][]float64, len(net.Layers))
	for i, l := range net.Layers {
		deltas[i] = make([]float64, len(l.Neurons))
	}
	return &epoch{net: net, solver: solver, loss: deep.GetLoss(net.Config.Loss), deltas: deltas}
}

// run makes one online pass and returns the mean squared error seen before
// each example's update.
func (e *epoch) run(examples training.Examples, it int) float64 {
	sum := 0.0
	for _, ex := range examples {
		if err := e.net.Forward(ex.Input); err != nil {
			continue
		}
		out := e.net.Layers[len(e.net.Layers)-1].Neurons[0].Value
		d := out - ex.Response[0]
		sum += d * d
		e.backward(ex.Response)
		e.update(it)
	}
	return sum / float64(len(examples))
}

func (e *epoch) backward(ideal []float64) {
	last := len(e.net.Layers) - 1
	for j, n := range e.net.Layers[last].Neurons {
		e.deltas[last][j] = e.loss.Df(n.Value, ideal[j], n.DActivate(n.Value))
	}
	for i := last - 1; i >= 0; i-- {
		for j, n := range e.net.Layers[i].Neurons {
			var sum float64
			for k, s := range n.Out {
				sum += s.Weight * e.deltas[i+1][k]
			}
			e.deltas[i][j] = n.DActivate(n.Value) * sum
		}
	}
}

func (e *epoch) update(it int) {
	idx := 0
	for i, l := range e.net.Layers {
		for j, n := range l.Neurons {
			for _, s := range n.In {
				s.Weight += e.solver.Update(s.Weight, e.deltas[i][j]*s.In, it, idx)
				idx++
			}
		}
	}
}

func meanSquaredError(net *deep.Neural, examples training.Examples) float64 {
	sum := 0.0
	for _, e := range examples {
		out := net.Predict(e.Input)
		d := out[0] - e.Response[0]
		sum += d * d
	}
	return sum / float64(len(examples))
}
