// Package moviekit 是一个基于内容的电影推荐工具包。
//
// 设计要点：
// - 训练/推理分离: trainer 离线产出模型工件，service 只读装载，两侧仅通过工件衔接
// - Pipeline-first: 推理逻辑通过 Node 串联（Recall → Filter → ReRank → PostProcess）
// - Labels-first: labels 全链路透传与标准化 merge，支持 explain / 观测 / 策略驱动
// - Node 可扩展: 自定义 Node 即可插拔扩展
package moviekit

import "github.com/rushteam/moviekit/pipeline"

// 轻量 facade：便于用户直接 import "moviekit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
