// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package types 提供 ModelMesh 协调核心的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 federation、search、router、
api 等上层模块提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - 错误构造：NewError / Errorf + WithCause / WithHTTPStatus / WithRetryable
  - 错误工具链：AsError / GetErrorCode / IsErrorCode / IsRetryable
  - 状态码映射：HTTPStatusFor 将错误码映射为默认 HTTP 状态
*/
package types
