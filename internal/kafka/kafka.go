// Package kafka provides broker readiness-probing and bootstrap of the task topic
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// WaitReady blocks until the broker accepts TCP connections
func WaitReady(brokerAddr string, delay time.Duration) {
	for {
		conn, err := kafkago.Dial("tcp", brokerAddr)
		if err == nil {
			if errConn := conn.Close(); errConn != nil {
				log.Println("Failed to close connection after probing Kafka readiness:", errConn)
			}
			break
		}
		log.Printf("Kafka not ready, retrying in %v...", delay)
		time.Sleep(delay)
	}
	log.Println("Kafka is ready!")
}

// EnsureTopic creates the tasks topic, retrying until the broker accepts.
// An already-existing topic counts as success.
func EnsureTopic(ctx context.Context, brokerAddr, topic string, delay time.Duration) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	req := kafkago.CreateTopicsRequest{
		Topics: []kafkago.TopicConfig{{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}},
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("EnsureTopic canceled or timed out")
			return
		default:
		}

		if err := tryCreate(ctx, client, &req); err != nil {
			log.Printf("Failed to create topic %q: %v\nWait %v before next try...", topic, err, delay)
			time.Sleep(delay)
			continue
		}

		log.Printf("Topic %q is ready!", topic)
		return
	}
}

func tryCreate(ctx context.Context, client *kafkago.Client, req *kafkago.CreateTopicsRequest) error {
	resp, err := client.CreateTopics(ctx, req)
	if err != nil {
		return err
	}

	for _, v := range resp.Errors {
		if v != nil && !errors.Is(v, kafkago.TopicAlreadyExists) {
			return v
		}
	}
	return nil
}
