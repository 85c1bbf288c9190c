package federation

import (
	"time"

	"github.com/BaSui01/modelmesh/tensor"
)

// ContributorWeight 某节点在一轮聚合中的权重
type ContributorWeight struct {
	NodeID   string  `json:"node_id"`
	DataSize uint64  `json:"data_size"`
	Weight   float64 `json:"weight"`
}

// Rejection 被本轮排除的提交及原因
type Rejection struct {
	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

// Snapshot 不可变的全局模型快照。
// 发布后不再修改，新一轮只会替换指针。
type Snapshot struct {
	ID            string                    `json:"id"`
	Round         uint64                    `json:"round"`
	Layers        map[string]*tensor.Tensor `json:"layers"`
	Contributors  []ContributorWeight       `json:"contributors"`
	Rejected      []Rejection               `json:"rejected,omitempty"`
	TotalDataSize uint64                    `json:"total_data_size"`
	Weighted      bool                      `json:"weighted"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// Layout 返回快照的层布局
func (s *Snapshot) Layout() tensor.Layout {
	if s == nil {
		return nil
	}
	return tensor.LayoutOf(s.Layers)
}

// Layer 按名称取层
func (s *Snapshot) Layer(name string) (*tensor.Tensor, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.Layers[name]
	return t, ok
}

// ContributorIDs 返回参与本轮的节点 ID（按聚合顺序）
func (s *Snapshot) ContributorIDs() []string {
	ids := make([]string, len(s.Contributors))
	for i, c := range s.Contributors {
		ids[i] = c.NodeID
	}
	return ids
}
