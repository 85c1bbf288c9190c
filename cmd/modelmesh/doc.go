// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package main 提供 ModelMesh 服务端程序入口。

# 概述

cmd/modelmesh 是 ModelMesh 的可执行入口，提供 HTTP API 服务、
数据库迁移、健康检查和版本查询等子命令。程序加载 YAML 配置与
MODELMESH_ 前缀的环境变量，使用 zap 结构化日志，并在独立端口暴露
Prometheus 指标。

# 核心类型

  - Server：组装 Core、Redis 快照发布、历史存储与 HTTP/Metrics 双端口
  - Scheduler：周期关闭聚合轮次、推进架构演化、清理过期贡献
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、migrate（数据库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    MetricsMiddleware、RequestLogger、CORS、RateLimiter、APIKeyAuth、MaxBody
  - 节点认证：NodeAuth 校验 Bearer JWT，sub 声明即节点 ID
  - 启动恢复：从历史存储读取最近快照，重启后轮次编号继续递增
  - 优雅关闭：信号监听 → 停止调度 → 断开事件流 → 关闭 HTTP 与 Metrics → 释放连接
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
