package model

import "time"

// FlowKind 是管理员多步操作的类型。
type FlowKind int

const (
	FlowGenLink FlowKind = iota + 1
	FlowBatch
)

func (k FlowKind) String() string {
	switch k {
	case FlowGenLink:
		return "genlink"
	case FlowBatch:
		return "batch"
	}
	return "unknown"
}

// FlowStep 是多步操作当前等待的输入。
type FlowStep int

const (
	// StepAwaitMessage 等待 genlink 的那一条转发消息。
	StepAwaitMessage FlowStep = iota + 1
	// StepAwaitFirst 等待批量链接的第一条消息。
	StepAwaitFirst
	// StepAwaitLast 等待批量链接的最后一条消息。
	StepAwaitLast
)

// FlowState 是一个管理员正在进行的多步操作，按管理员 ID 保存。
type FlowState struct {
	AdminID   int64     `json:"adminId"`
	Kind      FlowKind  `json:"kind"`
	Step      FlowStep  `json:"step"`
	FirstID   int       `json:"firstId,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}
