// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package federation 实现联邦聚合：节点提交注册表与 FedAvg 轮次协调器。

# 概述

客户端节点持续向 Registry 推送本地权重，每个节点只保留最新一份提交
（last-write-wins）。Coordinator 按定时器或按需关闭轮次：收集活跃提交，
剔除层布局不一致的提交，按数据量加权平均每一层，然后以一次原子指针交换
发布新的 Snapshot。

# 核心类型

  - Contribution: 节点提交（node_id、权重、数据量、精度、提交时间）
  - Registry: 并发安全的提交存储，支持过期清理与后台清理循环
  - Coordinator: 轮次协调器，快照的唯一写入点
  - Snapshot: 不可变的全局模型快照，轮次单调递增

# 错误语义

  - INVALID_CONTRIBUTION: 布局不一致，该提交被排除，轮次继续
  - QUORUM_NOT_MET: 活跃或合格节点不足，轮次跳过，快照与轮次不变
  - ROUND_ABORTED: ctx 在层间被取消，上一快照保持有效

# 使用方式

	reg := federation.NewRegistry(5*time.Minute, logger)
	coord := federation.NewCoordinator(reg, federation.CoordinatorConfig{Quorum: 2}, logger)

	_ = reg.Submit(&federation.Contribution{NodeID: "node-a", Weights: w, DataSize: 100})
	snap, err := coord.CloseRound(ctx)
*/
package federation
