// Package fixtures 提供测试用的节点提交、专家与候选架构。
package fixtures

import (
	"time"

	"github.com/BaSui01/modelmesh/federation"
	"github.com/BaSui01/modelmesh/router"
	"github.com/BaSui01/modelmesh/search"
	"github.com/BaSui01/modelmesh/tensor"
)

// Epoch 固定的测试起始时间
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// =============================================================================
// 🤝 节点提交
// =============================================================================

// Uniform 返回所有元素都为 v 的张量
func Uniform(rows, cols int, v float64) *tensor.Tensor {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	t, err := tensor.New(rows, cols, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Contribution 单层 "w" 的提交，形状 rows x cols，元素均为 v
func Contribution(nodeID string, dataSize uint64, rows, cols int, v float64) *federation.Contribution {
	return &federation.Contribution{
		NodeID:   nodeID,
		Weights:  map[string]*tensor.Tensor{"w": Uniform(rows, cols, v)},
		DataSize: dataSize,
		Accuracy: 0.9,
	}
}

// TwoNodeRound 两节点 2x2 场景：(a, 100, 1.0) 与 (b, 300, 3.0)，加权平均为 2.5
func TwoNodeRound() []*federation.Contribution {
	return []*federation.Contribution{
		Contribution("node-a", 100, 2, 2, 1.0),
		Contribution("node-b", 300, 2, 2, 3.0),
	}
}

// =============================================================================
// 🧭 专家
// =============================================================================

// Experts 一组覆盖全部领域的活跃专家
func Experts() []router.Expert {
	return []router.Expert{
		{ID: "general", Domain: router.DomainGeneral, Accuracy: 0.8, Load: 0.2, Status: router.StatusActive, Specialization: "general assistant", ResponseTimeMs: 120},
		{ID: "coder", Domain: router.DomainCode, Accuracy: 0.92, Load: 0.1, Status: router.StatusActive, Specialization: "backend code", Expertise: 1, ResponseTimeMs: 200},
		{ID: "mathematician", Domain: router.DomainMath, Accuracy: 0.9, Load: 0.3, Status: router.StatusActive, Specialization: "calculus", Expertise: 0.9, ResponseTimeMs: 180},
		{ID: "vision", Domain: router.DomainVision, Accuracy: 0.88, Load: 0.4, Status: router.StatusIdle, Specialization: "image tagging", ResponseTimeMs: 300},
		{ID: "writer", Domain: router.DomainCreative, Accuracy: 0.85, Load: 0.2, Status: router.StatusActive, Specialization: "short fiction", ResponseTimeMs: 150},
	}
}

// =============================================================================
// 🧬 候选架构
// =============================================================================

// Candidate 以给定基因构造并评分的候选
func Candidate(id string, g search.Genome, accuracy float64) search.Candidate {
	g = g.Clamp()
	params, flops := g.Params(), g.FLOPs()
	return search.Candidate{
		ID:       id,
		Genome:   g,
		Accuracy: accuracy,
		Params:   params,
		FLOPs:    flops,
		Score:    search.Score(accuracy, params, flops),
	}
}
