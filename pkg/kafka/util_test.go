package kafka

import (
	"reflect"
	"testing"
)

func TestParseBrokers(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:9092 , b:9092,,", []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		if got := ParseBrokers(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseBrokers(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateParams(t *testing.T) {
	if err := ValidateConsumerParams("b:9092", "events.classified", ""); err == nil {
		t.Error("expected error for empty group id")
	}
	if err := ValidateConsumerParams("b:9092", "events.classified", "alert-engine"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateProducerParams("", "alerts"); err == nil {
		t.Error("expected error for empty brokers")
	}
}

func TestNewReaderConfig(t *testing.T) {
	cfg := NewReaderConfig([]string{"b:9092"}, "events.classified", "alert-engine")
	if cfg.MaxWait != MaxPollWait || cfg.CommitInterval != CommitInterval {
		t.Errorf("unexpected timing config: %+v", cfg)
	}
	if cfg.GroupID != "alert-engine" {
		t.Errorf("GroupID = %q", cfg.GroupID)
	}
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"b:9092"}, "alerts.notifications")
	if w.Topic != "alerts.notifications" {
		t.Errorf("Topic = %q", w.Topic)
	}
	if w.Addr.String() != "b:9092" {
		t.Errorf("Addr = %q", w.Addr.String())
	}
}
