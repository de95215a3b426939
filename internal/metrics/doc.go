/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖话轮分配、
决策回合、快照与事件分发四大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
注册机制，按 namespace 隔离，支持多维度 label 分组，便于 Grafana
等工具进行可视化与告警。

# 主要能力

  - 话轮指标：请求总数（按策略与裁决结果分组）、队列深度、
    活跃话轮数、话轮时长、抢占计数。
  - 回合指标：拍卖/投票/共识回合的开启与结束计数、决策耗时。
  - 快照指标：挂起/恢复/检查点操作计数与耗时，按后端分组。
  - 事件指标：事件发布计数、监听器失败计数、熔断器状态。
*/
package metrics
