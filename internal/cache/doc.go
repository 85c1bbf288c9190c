// 版权所有 2026 ModelMesh Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存管理能力，负责发布全局快照与最优候选架构，
供看板与只读副本读取。

# 概述

本包封装 go-redis 客户端。Manager 负责连接生命周期管理，包括初始化、
健康检查与优雅关闭，并在通用键值接口之上提供领域发布方法。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/Publish 基础操作，
    以及 GetJSON/SetJSON 便捷序列化方法。
  - Config：缓存配置，包含地址、密码、连接池大小、默认 TTL、
    键前缀与健康检查间隔等参数。
  - BestRecord：某一代结束时发布的最优候选。
  - Stats：命中/未命中计数、键数量与连接池状态。

# 键布局

  - <prefix>:snapshot:latest：最近一次关闭轮次的快照
  - <prefix>:snapshot:round:<n>：第 n 轮快照
  - <prefix>:search:best：当前最优候选
  - <prefix>:events：轮次与代际事件频道

# 错误语义

提供 ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数，以及 ErrClosed。
*/
package cache
