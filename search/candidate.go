package search

import (
	"math"
)

// 搜索空间边界
const (
	MinLayers   = 8
	MaxLayers   = 50
	MinChannels = 16
	MaxChannels = 512
)

// Activation 激活函数
type Activation string

const (
	ReLU  Activation = "ReLU"
	Swish Activation = "Swish"
	GELU  Activation = "GELU"
	Mish  Activation = "Mish"
)

// Activations 全部可选激活函数
var Activations = []Activation{ReLU, Swish, GELU, Mish}

// KernelSizes 全部可选卷积核尺寸
var KernelSizes = []int{3, 5, 7}

// Valid 检查激活函数是否在搜索空间内
func (a Activation) Valid() bool {
	for _, v := range Activations {
		if a == v {
			return true
		}
	}
	return false
}

// Genome 一个候选架构的四个基因
type Genome struct {
	Layers     int        `json:"layers"`
	Channels   int        `json:"channels"`
	KernelSize int        `json:"kernel_size"`
	Activation Activation `json:"activation"`
}

// Valid 检查基因是否满足搜索空间边界
func (g Genome) Valid() bool {
	return g.Layers >= MinLayers && g.Layers <= MaxLayers &&
		g.Channels >= MinChannels && g.Channels <= MaxChannels &&
		validKernel(g.KernelSize) && g.Activation.Valid()
}

// Clamp 将越界基因夹回边界内，从不拒绝。
// 卷积核取最近的合法尺寸，未知激活函数回落为 ReLU。
func (g Genome) Clamp() Genome {
	g.Layers = clampInt(g.Layers, MinLayers, MaxLayers)
	g.Channels = clampInt(g.Channels, MinChannels, MaxChannels)
	if !validKernel(g.KernelSize) {
		g.KernelSize = nearestKernel(g.KernelSize)
	}
	if !g.Activation.Valid() {
		g.Activation = ReLU
	}
	return g
}

// Params 参数量（百万）
func (g Genome) Params() float64 {
	c := float64(g.Channels)
	return float64(g.Layers) * c * c * 9 / 1e6
}

// FLOPs 224x224 输入下的计算量（十亿）
func (g Genome) FLOPs() float64 {
	c := float64(g.Channels)
	k := float64(g.KernelSize)
	return float64(g.Layers) * c * c * k * k * 224 * 224 / 1e9
}

// Candidate 已评估的候选架构，值类型，生成后不再修改
type Candidate struct {
	ID string `json:"id"`
	Genome
	Accuracy   float64  `json:"accuracy"`
	Params     float64  `json:"params"`
	FLOPs      float64  `json:"flops"`
	Score      float64  `json:"score"`
	Generation uint64   `json:"generation"`
	Parents    []string `json:"parents,omitempty"`
}

// Score 效率得分 accuracy / (ln(params+1) * ln(flops+1))，夹在 [0,100]
func Score(accuracy, params, flops float64) float64 {
	denom := math.Log(params+1) * math.Log(flops+1)
	if denom <= 0 || math.IsNaN(denom) {
		return clampFloat(accuracy, 0, 100)
	}
	return clampFloat(accuracy/denom, 0, 100)
}

// Best 返回得分最高的候选；种群为空时 ok 为 false
func Best(population []Candidate) (Candidate, bool) {
	if len(population) == 0 {
		return Candidate{}, false
	}
	best := population[0]
	for _, c := range population[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

func validKernel(k int) bool {
	for _, v := range KernelSizes {
		if k == v {
			return true
		}
	}
	return false
}

func nearestKernel(k int) int {
	best := KernelSizes[0]
	for _, v := range KernelSizes[1:] {
		if absInt(k-v) < absInt(k-best) {
			best = v
		}
	}
	return best
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
