// Package kafka 提供了与 Kafka 消息队列交互的功能，用于把广播任务交给独立的消费者执行。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"file-share-bot/internal/config"
	"file-share-bot/pkg/log"
	"file-share-bot/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// TaskProcessor 是能够执行广播任务的服务，把消费者与具体实现解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.BroadcastTask) error
}

// Brokers 把逗号分隔的 broker 列表拆分为切片。
func Brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Enabled 判断是否配置了 Kafka。
func Enabled(cfg config.KafkaConfig) bool {
	return len(Brokers(cfg)) > 0 && cfg.Topic != ""
}

// Producer 把广播任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(Brokers(cfg)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// PublishBroadcast 发送一个广播任务到 Kafka，以任务 ID 作为消息键。
func (p *Producer) PublishBroadcast(ctx context.Context, task tasks.BroadcastTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ID),
		Value: taskBytes,
	})
}

// Close 关闭生产者，未发送的消息会被刷出。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// 已完成的任务在 Redis 中保留的时长，用于丢弃重复投递。
const doneTTL = 24 * time.Hour

func doneKey(taskID string) string {
	return fmt.Sprintf("kafka:broadcast:done:%s", taskID)
}

// StartConsumer 启动一个 Kafka 消费者来处理广播任务，直到 ctx 结束。
//
// 广播失败时不会重试：部分用户可能已经收到消息，重放会造成重复。
// rdb 不为 nil 时用它记录已完成的任务 ID，提交 offset 之前崩溃导致的重复投递会被跳过。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  Brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)

		var task tasks.BroadcastTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if rdb != nil {
			first, err := rdb.SetNX(ctx, doneKey(task.ID), time.Now().Unix(), doneTTL).Result()
			if err != nil {
				log.Errorw("无法记录广播任务状态，继续处理", "task", task.ID, "error", err)
			} else if !first {
				log.Warnf("广播任务 %s 已处理过，跳过", task.ID)
				commit(ctx, r, m)
				continue
			}
		}

		log.Infof("开始处理广播任务: ID=%s, admin=%d", task.ID, task.RequestedBy)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("处理广播任务失败: ID=%s, Error: %v", task.ID, err)
		} else {
			log.Infof("广播任务处理成功: ID=%s", task.ID)
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(context.WithoutCancel(ctx), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
