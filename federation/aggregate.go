package federation

import (
	"context"
	"math"
	"math/bits"

	"github.com/BaSui01/modelmesh/tensor"
	"github.com/BaSui01/modelmesh/types"
)

// Aggregate 对一组布局一致的提交执行 FedAvg。
// 权重为 dataSize/Σ dataSize；Σ dataSize 为 0 时退化为算术平均。
// 输入不会被修改，返回的张量均为新分配。
func Aggregate(contributions []*Contribution) (map[string]*tensor.Tensor, []ContributorWeight, error) {
	if len(contributions) == 0 {
		return nil, nil, types.NewError(types.ErrQuorumNotMet, "no contributions to aggregate")
	}
	ref := contributions[0].Layout()
	for _, c := range contributions {
		if err := ref.Matches(c.Weights); err != nil {
			return nil, nil, invalidLayout(c.NodeID, err)
		}
	}
	return aggregate(context.Background(), contributions, ref)
}

// FedAvgWeights 计算每个提交的聚合权重，总和为 1。
// 权重按 float64 累加计算；返回的数据总量溢出时饱和为 math.MaxUint64。
func FedAvgWeights(contributions []*Contribution) ([]ContributorWeight, uint64) {
	var total uint64
	var sum float64
	for _, c := range contributions {
		total = saturatingAdd(total, c.DataSize)
		sum += float64(c.DataSize)
	}

	out := make([]ContributorWeight, len(contributions))
	for i, c := range contributions {
		w := 1.0 / float64(len(contributions))
		if sum > 0 {
			w = float64(c.DataSize) / sum
		}
		out[i] = ContributorWeight{NodeID: c.NodeID, DataSize: c.DataSize, Weight: w}
	}
	return out, total
}

func saturatingAdd(a, b uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return s
}

// aggregate 逐层累加，层与层之间检查 ctx
func aggregate(ctx context.Context, contributions []*Contribution, layout tensor.Layout) (map[string]*tensor.Tensor, []ContributorWeight, error) {
	weights, _ := FedAvgWeights(contributions)

	layers := make(map[string]*tensor.Tensor, len(layout))
	for _, name := range layout.Names() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		shape := layout[name]
		acc, err := tensor.Zeros(shape.Rows, shape.Cols)
		if err != nil {
			return nil, nil, err
		}
		for i, c := range contributions {
			acc, err = tensor.AddScaled(acc, c.Weights[name], weights[i].Weight)
			if err != nil {
				return nil, nil, invalidLayout(c.NodeID, err)
			}
		}
		layers[name] = acc
	}
	return layers, weights, nil
}
