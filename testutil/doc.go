// Copyright (c) ModelMesh Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 ModelMesh 测试的共享工具和辅助函数。

# 概述

testutil 只依赖 types 包，federation、search、router 等领域包的
内部测试可以直接使用，不会产生循环依赖。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext
  - 可控时钟: FakeClock，配合注册表与专家池的时钟注入
  - 断言工具: AssertErrorCode / AssertJSONEqual
  - 异步断言: AssertEventuallyTrue / AssertEventuallyEqual
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/fixtures: 预置的节点提交、专家池与架构候选，
    供根包、api/handlers 与 cmd 的测试使用

# 使用示例

	clock := testutil.NewFakeClock(time.Now())
	reg := federation.NewRegistry(time.Minute, nil, federation.WithClock(clock.Now))
	clock.Advance(2 * time.Minute)
*/
package testutil
