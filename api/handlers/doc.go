// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 ModelMesh HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 ModelMesh 所有 HTTP 端点的请求处理逻辑，
包括节点提交与轮次聚合、架构搜索、专家路由、事件推送、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，路径参数通过 Go 1.22 路由模式读取。

# 核心类型

  - FederationHandler：提交、关闭轮次、快照与轮次历史
  - SearchHandler：演化、最优候选、种群与代历史
  - RoutingHandler：查询路由与专家池管理（注册、状态迁移、遥测）
  - EventsHandler：WebSocket 事件流，支持按类型过滤
  - HealthHandler：服务健康检查（/health, /healthz, /ready）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / HandleError
  - 请求验证：DecodeJSONBody（8 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode 到 HTTP 状态码由 types.HTTPStatusFor 映射
  - 节点认证后以令牌主体为准，与请求体中的 node_id 不符时返回 403
*/
package handlers
