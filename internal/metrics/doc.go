// 版权所有 2026 ModelMesh Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、联邦聚合、架构搜索、专家路由、缓存与数据库六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
领域指标再按 subsystem（federation / search / router）分组。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 联邦指标：提交数（accepted/rejected）、轮次结果、轮次耗时、
    当前轮次、每轮参与者数、活跃节点数、过期清理数。
  - 搜索指标：演化次数、每代耗时、最佳得分、种群大小。
  - 路由指标：决策结果（routed/fallback）、入选专家数、置信度分布、
    专家状态切换。
  - 缓存与数据库指标：命中/未命中、连接数、查询耗时。
*/
package metrics
