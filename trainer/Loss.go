package trainer

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/offlinerl/agent"
)

// ExpectileLoss returns the mean expectile loss of the residuals diff:
//
//	mean(w(d) * d²), w(d) = expectile if d > 0 else 1 - expectile
//
// The loss of no residuals is 0.
func ExpectileLoss(diff []float64, expectile float64) float64 {
	if len(diff) == 0 {
		return 0
	}

	var sum float64
	for _, d := range diff {
		w := 1 - expectile
		if d > 0 {
			w = expectile
		}
		sum += w * d * d
	}
	return sum / float64(len(diff))
}

// TDTarget returns the one step bootstrapped targets
//
//	reward + (1 - done) * γ * next
//
// Where done is 1, the target is exactly the reward.
func TDTarget(reward, done, next []float64, gamma float64) ([]float64,
	error) {
	if len(reward) != len(done) || len(reward) != len(next) {
		return nil, fmt.Errorf("tdTarget: %v rewards, %v dones, and %v "+
			"next values", len(reward), len(done), len(next))
	}

	target := make([]float64, len(reward))
	for i := range reward {
		if done[i] >= 1 {
			target[i] = reward[i]
			continue
		}
		target[i] = reward[i] + (1-done[i])*next[i]*gamma
	}
	return target, nil
}

// Advantages returns min(q1, q2) - min(v1, v2) for each prediction of
// a critic
func Advantages(v agent.CriticValues) ([]float64, error) {
	n := v.Len()
	if len(v.Q1) != n || len(v.Q2) != n || len(v.V2) != n {
		return nil, fmt.Errorf("advantages: heads have different lengths")
	}

	adv := make([]float64, n)
	for i := range adv {
		adv[i] = math.Min(v.Q1[i], v.Q2[i]) - math.Min(v.V1[i], v.V2[i])
	}
	return adv, nil
}

// AWRWeights returns the advantage weights exp(invTemp * adv), each
// clamped to maxWeight. No clamping is done if maxWeight <= 0.
func AWRWeights(adv []float64, invTemp, maxWeight float64) []float64 {
	weights := make([]float64, len(adv))
	for i := range adv {
		weights[i] = math.Exp(invTemp * adv[i])
		if maxWeight > 0 && weights[i] > maxWeight {
			weights[i] = maxWeight
		}
	}
	return weights
}

// AWRLoss returns the advantage weighted regression loss
//
//	-mean(weights * logProb)
func AWRLoss(weights, logProb []float64) (float64, error) {
	if len(weights) != len(logProb) {
		return math.NaN(), fmt.Errorf("awrLoss: %v weights but %v log "+
			"probabilities", len(weights), len(logProb))
	}
	if len(weights) == 0 {
		return 0, nil
	}

	var sum float64
	for i := range weights {
		sum += weights[i] * logProb[i]
	}
	return -sum / float64(len(weights)), nil
}
