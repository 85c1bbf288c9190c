package federation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/BaSui01/modelmesh/tensor"
	"github.com/BaSui01/modelmesh/types"
)

// Contribution 节点提交的一份本地权重。
// 同一节点的新提交会替换旧提交，被聚合吸收后从注册表移除。
type Contribution struct {
	NodeID      string                    `json:"node_id"`
	Weights     map[string]*tensor.Tensor `json:"weights"`
	DataSize    uint64                    `json:"data_size"`
	Accuracy    float64                   `json:"accuracy"`
	SubmittedAt time.Time                 `json:"submitted_at"`
}

// Layout 返回该提交的层布局
func (c *Contribution) Layout() tensor.Layout {
	return tensor.LayoutOf(c.Weights)
}

// Validate 检查提交自身是否完整，不涉及与其他节点的布局比较
func (c *Contribution) Validate() error {
	if c == nil {
		return types.NewError(types.ErrInvalidContribution, "contribution is nil")
	}
	if strings.TrimSpace(c.NodeID) == "" {
		return types.NewError(types.ErrInvalidContribution, "node_id is required")
	}
	if len(c.Weights) == 0 {
		return types.Errorf(types.ErrInvalidContribution, "node %s submitted no layers", c.NodeID)
	}
	for name, w := range c.Weights {
		if name == "" {
			return types.Errorf(types.ErrInvalidContribution, "node %s submitted an unnamed layer", c.NodeID)
		}
		if w == nil {
			return types.Errorf(types.ErrInvalidContribution, "node %s layer %q is empty", c.NodeID, name)
		}
	}
	if math.IsNaN(c.Accuracy) || c.Accuracy < 0 || c.Accuracy > 1 {
		return types.Errorf(types.ErrInvalidContribution, "node %s accuracy %v outside [0,1]", c.NodeID, c.Accuracy)
	}
	return nil
}

// clone 返回浅拷贝；张量本身不可变，可以共享
func (c *Contribution) clone() *Contribution {
	cp := *c
	cp.Weights = make(map[string]*tensor.Tensor, len(c.Weights))
	for k, v := range c.Weights {
		cp.Weights[k] = v
	}
	return &cp
}

// invalidLayout 将布局不一致包装为 INVALID_CONTRIBUTION
func invalidLayout(nodeID string, err error) *types.Error {
	return types.NewError(types.ErrInvalidContribution, fmt.Sprintf("node %s layout mismatch", nodeID)).WithCause(err)
}
