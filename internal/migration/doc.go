// 版权所有 2026 ModelMesh Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 migration 管理历史存储的数据库 Schema，支持 PostgreSQL、
MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

round_records 与 generation_records 两张表的 SQL 按方言内嵌于
migrations/<dialect> 目录。SQLite 连接通过与 GORM 相同的
glebarez 纯 Go 驱动打开，再交给 golang-migrate 的 sqlite3 方言执行。

# 核心接口与类型

  - Migrator：Up/Down/DownAll/Steps/Goto/Force/Version/Status/Info/Close。
  - DefaultMigrator：基于 golang-migrate 的默认实现，进度日志写入 zap。
  - CLI：modelmesh migrate 子命令的输出层，Run 按子命令名分发。
  - NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL：从不同配置源创建迁移器。
*/
package migration
