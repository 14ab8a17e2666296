package cli

import (
	"context"
	"testing"

	"welth/internal/config"
)

func TestOptionalClientsDisabled(t *testing.T) {
	cfg := &config.Config{}
	ctx := context.Background()

	if c, err := NewAIClient(ctx, cfg); err != nil || c != nil {
		t.Errorf("NewAIClient() = %v, %v; want nil, nil", c, err)
	}
	if a, err := NewReceiptArchive(ctx, cfg); err != nil || a != nil {
		t.Errorf("NewReceiptArchive() = %v, %v; want nil, nil", a, err)
	}
	if c, err := NewAMQPClient(cfg); err != nil || c != nil {
		t.Errorf("NewAMQPClient() = %v, %v; want nil, nil", c, err)
	}
}

func TestNewNotifier(t *testing.T) {
	tests := []struct {
		name      string
		transport string
		wantErr   bool
	}{
		{"log transport", config.EmailTransportLog, false},
		{"default transport", "", false},
		{"gmail without credentials", config.EmailTransportGmail, true},
		{"unknown transport", "carrier-pigeon", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{EmailTransport: tt.transport, EmailFrom: "welth@example.com", AppURL: "https://welth.example"}
			d, err := NewNotifier(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewNotifier() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && d == nil {
				t.Error("NewNotifier() returned nil dispatcher")
			}
		})
	}
}
