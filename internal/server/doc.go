// 版权所有 2026 ModelMesh Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，承载协调 API 与
Prometheus 指标两个监听端口。

# 核心类型

  - Manager：封装 http.Server 与 net.Listener，提供 Start/Shutdown/
    Errors/Addr 等生命周期方法；配置了证书时自动以 HTTPS 启动，
    TLS 参数来自 internal/tlsutil。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小、
    优雅关闭超时与证书路径。FromServerConfig 由应用配置构造。

# 主要能力

  - 非阻塞启动：服务在后台 goroutine 中运行，异常通过 Errors() 上报。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空。
  - 信号处理由 cmd/modelmesh 通过 signal.NotifyContext 统一负责。
*/
package server
