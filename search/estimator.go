package search

import (
	"math"
	"math/rand"
)

// Estimator 估计一个架构的精度（百分制）。
// 实现必须可并发调用；rng 为每个候选单独派生，可安全使用。
type Estimator interface {
	EstimateAccuracy(g Genome, rng *rand.Rand) float64
}

// EstimatorFunc 函数适配器
type EstimatorFunc func(g Genome, rng *rand.Rand) float64

// EstimateAccuracy 实现 Estimator
func (f EstimatorFunc) EstimateAccuracy(g Genome, rng *rand.Rand) float64 {
	return f(g, rng)
}

// HeuristicEstimator 默认的启发式估计器：
// 基准 70 分，叠加深度、宽度、卷积核与激活函数加成，再加高斯噪声。
// 可替换为真实的训练/评估钩子。
type HeuristicEstimator struct {
	NoiseStdDev float64
}

var kernelBonus = map[int]float64{3: 2.0, 5: 3.0, 7: 2.5}

var activationBonus = map[Activation]float64{
	ReLU:  0,
	Swish: 1.5,
	GELU:  2.0,
	Mish:  1.8,
}

// EstimateAccuracy 实现 Estimator，结果夹在 [0, 99.9]
func (h HeuristicEstimator) EstimateAccuracy(g Genome, rng *rand.Rand) float64 {
	acc := 70.0
	// 深度收益递减，约 8 分封顶
	acc += 8 * (1 - math.Exp(-float64(g.Layers-MinLayers)/15))
	// 宽度每翻倍 +2
	acc += 2 * math.Log2(float64(g.Channels)/MinChannels)
	acc += kernelBonus[g.KernelSize]
	acc += activationBonus[g.Activation]
	if h.NoiseStdDev > 0 && rng != nil {
		acc += rng.NormFloat64() * h.NoiseStdDev
	}
	return clampFloat(acc, 0, 99.9)
}
