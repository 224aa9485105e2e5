// Package rerank 提供打分列表的可插拔后处理：对排序做扰动或折扣，
// 以及最终截断。
//
// 每个节点都是 pipeline.Node（Kind = rerank），输入为按分数排好的
// 候选列表。EpsilonDithering 与 ImpressionDiscount 输出同一集合的
// 一个排列；TopN 截取前 N 个，会缩小候选集合。这些节点永不报错，
// 空列表原样返回；给定随机源与外部状态时结果可复现。
package rerank
