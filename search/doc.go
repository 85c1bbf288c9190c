// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package search 实现演化神经架构搜索（NAS）。

# 概述

候选架构由四个基因描述：层数 [8,50]、通道数 [16,512]、卷积核 {3,5,7}
与激活函数 {ReLU, Swish, GELU, Mish}。每一代按得分降序保留前 50%，
其余位置以 70% 概率均匀交叉、30% 概率变异补齐；所有后代在定型前
被夹回边界，越界从不作为错误出现。

得分 = accuracy / (ln(params+1) * ln(flops+1))，夹在 [0,100]。

# 可替换的估计器

精度来自 Estimator 接口，默认 HeuristicEstimator 是带噪声的启发式公式，
可通过 WithEstimator 换成真实的训练/评估钩子。评估在 errgroup 中并行执行，
每个后代的随机种子由引擎 rng 顺序派生，固定 Seed 即可复现结果。

# 使用方式

	eng := search.NewEngine(search.Config{PopulationSize: 20, Seed: 42}, logger)
	pop, err := eng.Evolve(ctx)
	best, ok := search.Best(pop)
*/
package search
