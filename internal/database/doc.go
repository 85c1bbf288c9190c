// 版权所有 2026 ModelMesh Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的连接池管理与轮次/代际历史存储。

# 概述

Open 按配置选择 postgres、mysql 或纯 Go 的 sqlite 方言打开连接。
PoolManager 统一管理连接生命周期与后台健康检查；Store 记录每次
成功关闭的聚合轮次与每一代架构搜索的摘要，并可在重启后还原最近
一次的全局快照。

# 核心类型

  - PoolManager：连接池管理器，提供 DB()、Ping()、Stats()、Close()
    与带重试的事务执行。
  - PoolConfig：连接池配置，Validate 校验连接数约束。
  - Store：历史记录存储，提供 SaveRound/ListRounds/LatestSnapshot
    与 SaveGeneration/ListGenerations。
  - RoundRecord / GenerationRecord：对应 round_records 与
    generation_records 两张表，表结构由 internal/migration 维护。

# 错误语义

存储层失败统一返回 STORE_UNAVAILABLE（可重试）；没有任何轮次记录时
LatestSnapshot 返回 SNAPSHOT_NOT_FOUND。
*/
package database
