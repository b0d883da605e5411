package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lucidpool/dashd/pkg/log"
)

func testLogger() *log.Logger {
	return log.New("messaging-test", "test", "error", "text")
}

func TestNewKafkaClient(t *testing.T) {
	client := NewKafkaClient([]string{"localhost:9092"}, testLogger())

	if client == nil {
		t.Fatal("NewKafkaClient returned nil")
	}

	if len(client.brokers) != 1 || client.brokers[0] != "localhost:9092" {
		t.Errorf("Expected brokers [localhost:9092], got %v", client.brokers)
	}

	if client.writers == nil {
		t.Error("Writers map should not be nil")
	}

	if client.readers == nil {
		t.Error("Readers map should not be nil")
	}
}

func TestKafkaClient_GetProducer(t *testing.T) {
	client := NewKafkaClient([]string{"localhost:9092"}, testLogger())

	topic := "test-topic"

	// First call should create a new producer
	producer1 := client.GetProducer(topic)
	if producer1 == nil {
		t.Fatal("GetProducer returned nil")
	}

	if producer1.Topic != topic {
		t.Errorf("Expected topic %s, got %s", topic, producer1.Topic)
	}

	// Second call should return the same producer (cached)
	producer2 := client.GetProducer(topic)
	if producer1 != producer2 {
		t.Error("Expected same producer instance from cache")
	}

	if len(client.writers) != 1 {
		t.Errorf("Expected 1 writer in map, got %d", len(client.writers))
	}
}

func TestKafkaClient_GetConsumer(t *testing.T) {
	client := NewKafkaClient([]string{"localhost:9092"}, testLogger())

	consumer1 := client.GetConsumer(TopicWorkersOnline, "statsd")
	if consumer1 == nil {
		t.Fatal("GetConsumer returned nil")
	}

	consumer2 := client.GetConsumer(TopicWorkersOnline, "statsd")
	if consumer1 != consumer2 {
		t.Error("Expected same consumer instance from cache")
	}

	// A different group gets its own reader
	consumer3 := client.GetConsumer(TopicWorkersOnline, "other")
	if consumer3 == consumer1 {
		t.Error("Expected distinct consumer for a different group")
	}

	if len(client.readers) != 2 {
		t.Errorf("Expected 2 readers in map, got %d", len(client.readers))
	}
}

func TestWorkerOnlineEventRoundTrip(t *testing.T) {
	event := WorkerOnlineEvent{
		Address: "addr1",
		Workers: []WorkerHost{
			{Worker: "rig1", Host: "us-east"},
			{Worker: "rig2", Host: "eu-west"},
		},
		ReportedAt: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded WorkerOnlineEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.Address != event.Address || len(decoded.Workers) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Workers[0].Host != "us-east" {
		t.Errorf("Workers[0].Host = %q", decoded.Workers[0].Host)
	}
}
