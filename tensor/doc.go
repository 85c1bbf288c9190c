// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package tensor 提供联邦聚合使用的二维数值张量及逐元素运算。

# 概述

Tensor 基于 gonum 的 mat.Dense 实现，构造后不可变：Add、Scale、AddScaled
均返回新分配的张量，便于在新一轮聚合计算时安全地并发读取旧快照。

# 核心类型

  - Tensor：不可变二维张量，支持 JSON 编解码（{"shape":[r,c],"data":[[...]]}）
  - Shape：(rows, cols) 形状
  - Layout：层名到形状的映射，用于校验节点提交的权重结构
*/
package tensor
