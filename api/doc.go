// Package api 定义 ModelMesh HTTP API 的请求与响应类型。
//
// # API 概览
//
// ModelMesh 通过 RESTful API 提供：
//   - 节点提交本地权重与触发聚合轮次
//   - 全局快照与轮次历史查询
//   - 架构搜索的演化与最优候选查询
//   - 查询路由与专家池管理
//   - 轮次与演化事件的 WebSocket 推送
//
// # 认证
//
// 管理端点使用 X-API-Key 头：
//
//	X-API-Key: your-api-key
//
// 节点提交使用 Bearer JWT，令牌主体即节点 ID：
//
//	Authorization: Bearer <token>
//
// # Base URL
//
//	http://localhost:8080
package api
