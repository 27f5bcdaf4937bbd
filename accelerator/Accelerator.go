// Package accelerator implements the single-process training helper
// used by the trainer: moving external numbers into computational
// graphs, running backward passes with anomaly detection, clipping
// accumulated gradients, and describing the device training runs on.
package accelerator

import (
	"errors"
	"fmt"
	"math"

	"github.com/samuelfneumann/offlinerl/network"
	"github.com/samuelfneumann/offlinerl/solver"
	"github.com/samuelfneumann/offlinerl/utils/floatutils"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// AnomalyError reports a non-finite loss or gradient found during a
// backward pass
type AnomalyError struct {
	Op    string
	Node  string
	Value float64
}

// Error satisfies the error interface
func (a *AnomalyError) Error() string {
	return fmt.Sprintf("%v: non-finite value %v in %v", a.Op, a.Value, a.Node)
}

// IsAnomaly returns whether err reports a numerical anomaly
func IsAnomaly(err error) bool {
	var anomaly *AnomalyError
	return errors.As(err, &anomaly)
}

// IsMainProcess returns whether the caller is the main training
// process. Training always runs in a single process.
func IsMainProcess() bool {
	return true
}

// NumProcesses returns the number of training processes
func NumProcesses() int {
	return 1
}

// Adopt sets the value of the input node to a tensor holding values
// in row major order. The number of values must match the node's
// shape. Values are converted to float32 for float32 nodes.
func Adopt(node *G.Node, values []float64) error {
	shape := node.Shape()
	size := 1
	if !shape.IsScalar() {
		size = shape.TotalSize()
	}
	if len(values) != size {
		return fmt.Errorf("adopt: node %v with shape %v cannot hold %v "+
			"values", node.Name(), shape, len(values))
	}

	if shape.IsScalar() {
		switch node.Dtype() {
		case tensor.Float64:
			return G.Let(node, values[0])
		case tensor.Float32:
			return G.Let(node, float32(values[0]))
		}
		return fmt.Errorf("adopt: unsupported dtype %v", node.Dtype())
	}

	var backing interface{}
	switch node.Dtype() {
	case tensor.Float64:
		backing = append([]float64(nil), values...)
	case tensor.Float32:
		f32 := make([]float32, len(values))
		for i := range values {
			f32[i] = float32(values[i])
		}
		backing = f32
	default:
		return fmt.Errorf("adopt: unsupported dtype %v", node.Dtype())
	}

	t := tensor.New(tensor.WithShape(shape.Clone()...),
		tensor.WithBacking(backing))
	if err := G.Let(node, t); err != nil {
		return fmt.Errorf("adopt: %v", err)
	}
	return nil
}

// Backward runs the forward and backward passes of vm, whose graph
// computes loss and the gradients of the learnables of opt. If the loss
// or any gradient is not finite an *AnomalyError is returned and
// nothing is accumulated. Otherwise, the gradients are accumulated in
// opt and the loss is returned. The vm is reset before returning.
func Backward(vm G.VM, loss *G.Node, opt *solver.Optimizer) (float64,
	error) {
	defer vm.Reset()

	if err := vm.RunAll(); err != nil {
		return math.NaN(), fmt.Errorf("backward: %v", err)
	}

	lossData, err := network.ValueData(loss.Value())
	if err != nil || len(lossData) != 1 {
		return math.NaN(), fmt.Errorf("backward: loss must be a scalar")
	}
	lossVal := lossData[0]
	if !floatutils.AllFinite(lossData) {
		return lossVal, &AnomalyError{Op: "backward", Node: loss.Name(),
			Value: lossVal}
	}

	for _, node := range opt.Learnables() {
		grad, err := node.Grad()
		if err != nil {
			return lossVal, fmt.Errorf("backward: %v", err)
		}
		data, err := network.ValueData(grad)
		if err != nil {
			return lossVal, fmt.Errorf("backward: %v", err)
		}

		for _, g := range data {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				return lossVal, &AnomalyError{Op: "backward",
					Node: "∂" + node.Name(), Value: g}
			}
		}
	}

	if err := opt.Accumulate(); err != nil {
		return lossVal, fmt.Errorf("backward: %v", err)
	}
	return lossVal, nil
}

// ClipGradNorm clips the global norm of the gradients accumulated in
// opt to maxNorm and returns the norm before clipping
func ClipGradNorm(opt *solver.Optimizer, maxNorm float64) (float64, error) {
	norm, err := opt.ClipGradNorm(maxNorm)
	if err != nil {
		return norm, &AnomalyError{Op: "clipGradNorm", Node: "gradients",
			Value: norm}
	}
	return norm, nil
}
