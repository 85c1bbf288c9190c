// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package router 实现混合专家（MoE）查询路由。

# 概述

Router 对每个专家计算

	finalScore = domainScore * accuracy * expertise * (1 - load) * statusFactor

其中 domainScore 来自静态关键词表（Domain → KeywordGroup），命中组的权重
累加并封顶 1；较长的词元允许在 Levenshtein 距离内模糊命中。statusFactor
对 active 为 1，其余为 0.3。得分超过阈值的前 MaxExperts 个专家入选，
权重归一化；没有专家达标时回落到默认专家，置信度不超过 0.5。

# 专家池

Pool 是遥测源维护的专家注册表，提供遥测更新、负载增减与状态机切换：

	idle → training → active → idle | syncing
	syncing → active | idle

路由只读取 Pool.Snapshot 的副本。
*/
package router
