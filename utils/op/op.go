// Package op provides extended Gorgonia graph operations.
//
// Adapted from aunum/G.ld on GitHub
package op

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// LogSumExp calculates the log of the summation of exponentials of
// all logits along the given axis.
//
// Use this in place of Gorgonia's LogSumExp, which has the final sum
// and log interchanged, which is incorrect.
func LogSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// LogSoftmax returns the log of the softmax of the rows of logits
func LogSoftmax(logits *G.Node) *G.Node {
	lse := LogSumExp(logits, 1)
	return G.Must(G.BroadcastSub(logits, lse, nil, []byte{1}))
}

// MSE returns the mean squared error between pred and target
func MSE(pred, target *G.Node) (*G.Node, error) {
	diff, err := G.Sub(pred, target)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	sq, err := G.Square(diff)
	if err != nil {
		return nil, fmt.Errorf("mse: %v", err)
	}
	return G.Mean(sq)
}

// Expectile returns the mean expectile loss of diff:
//
//	mean(|expectile - 1(diff < 0)| * diff²)
//
// which is computed as
//
//	mean(expectile * relu(diff)² + (1 - expectile) * relu(-diff)²)
//
// so that the loss is differentiable everywhere.
func Expectile(diff *G.Node, expectile float64) (*G.Node, error) {
	if expectile <= 0 || expectile >= 1 {
		return nil, fmt.Errorf("expectile: expectile must be in (0, 1) "+
			"but got %v", expectile)
	}

	pos, err := G.Rectify(diff)
	if err != nil {
		return nil, fmt.Errorf("expectile: %v", err)
	}
	neg, err := G.Rectify(G.Must(G.Neg(diff)))
	if err != nil {
		return nil, fmt.Errorf("expectile: %v", err)
	}

	upper := G.Must(G.Mul(G.Must(G.Square(pos)), G.NewConstant(expectile)))
	lower := G.Must(G.Mul(G.Must(G.Square(neg)), G.NewConstant(1-expectile)))

	return G.Mean(G.Must(G.Add(upper, lower)))
}
