// Package config 提供 ModelMesh 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 MODELMESH）的顺序加载，
// 覆盖服务器、联邦聚合、架构搜索、专家路由、Redis、数据库、日志、遥测与 JWT。
package config
