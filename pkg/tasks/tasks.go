// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// BroadcastMode 决定广播时复制还是转发原消息。
type BroadcastMode string

const (
	BroadcastCopy    BroadcastMode = "copy"
	BroadcastForward BroadcastMode = "forward"
)

// BroadcastTask represents a broadcast job: one message sent to every stored user.
type BroadcastTask struct {
	ID              string        `json:"id"`
	Mode            BroadcastMode `json:"mode"`
	FromChatID      int64         `json:"from_chat_id"`
	MessageID       int           `json:"message_id"`
	AdminChatID     int64         `json:"admin_chat_id"`
	StatusMessageID int           `json:"status_message_id"`
	RequestedBy     int64         `json:"requested_by"`
	CreatedAt       time.Time     `json:"created_at"`
}
