package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finbot/internal/config"
	"finbot/internal/core"
	"finbot/internal/remote"
	"finbot/internal/services"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(c *config.Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "defaults",
			modify: func(c *config.Config) {},
		},
		{
			name:        "unknown data backend",
			modify:      func(c *config.Config) { c.DataBackend = "postgres" },
			wantErr:     true,
			errorString: "invalid data backend",
		},
		{
			name: "sheets without credentials",
			modify: func(c *config.Config) {
				c.RemoteBackend = config.RemoteSheets
				c.GoogleSpreadsheetID = "sheet"
			},
			wantErr:     true,
			errorString: "GoogleServiceAccountJSON or GoogleServiceAccountFile",
		},
		{
			name: "amqp without queue",
			modify: func(c *config.Config) {
				c.PushMode = config.PushAMQP
				c.AMQPQueue = ""
			},
			wantErr:     true,
			errorString: "AMQP connection settings are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appCfg := config.Load()
			tt.modify(appCfg)

			cfg, err := FromAppConfig(appCfg)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), tt.errorString) {
					t.Fatalf("FromAppConfig() error = %v, want error containing %q", err, tt.errorString)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromAppConfig() error = %v", err)
			}
			if cfg.KV.String() != appCfg.DataBackend || cfg.Remote.String() != appCfg.RemoteBackend {
				t.Errorf("FromAppConfig() = %+v, does not match app config", cfg)
			}
		})
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
}

func TestCreateBackend_MemoryWithoutRemote(t *testing.T) {
	f := NewFactory(nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{KV: MemoryKV, Remote: NoRemote, Push: DirectPush})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	if res.Store == nil {
		t.Fatal("expected a ledger store")
	}
	if res.Remote.Configured() {
		t.Errorf("expected no remote ports, got %+v", res.Remote)
	}
	if _, ok := res.Pusher.(services.NopPusher); !ok {
		t.Errorf("Pusher = %T, want services.NopPusher", res.Pusher)
	}
}

func TestCreateBackend_SQLitePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := Config{
		KV:           SQLiteKV,
		Remote:       NoRemote,
		Push:         DirectPush,
		SQLiteDBPath: filepath.Join(t.TempDir(), "data", "finbot.db"),
	}
	f := NewFactory(nil, nil)

	first, err := f.CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	first.Store.Add(ctx, core.Transaction{
		ID:          "1",
		Amount:      50000,
		Category:    string(core.CategoryFood),
		Description: "Cơm trưa",
		Date:        core.NewDate(2024, 3, 13),
		Type:        core.Expense,
		Status:      core.Confirmed,
	})
	if err := first.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	second, err := f.CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend() reopen error = %v", err)
	}
	defer second.Cleanup()

	txs := second.Store.Transactions()
	if len(txs) != 1 || txs[0].Description != "Cơm trưa" {
		t.Errorf("reloaded transactions = %+v, want the saved one", txs)
	}
}

func TestCreateBackend_WebAppRemote(t *testing.T) {
	f := NewFactory(nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{
		KV:            MemoryKV,
		Remote:        WebAppRemote,
		Push:          DirectPush,
		RemoteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Cleanup()

	if res.Remote.Source == nil || res.Remote.Sink == nil || res.Remote.Notifier == nil {
		t.Fatalf("web app remote should provide every port, got %+v", res.Remote)
	}
	if _, ok := res.Remote.Source.(*remote.Client); !ok {
		t.Errorf("Source = %T, want *remote.Client", res.Remote.Source)
	}
	if _, ok := res.Pusher.(*services.DirectPusher); !ok {
		t.Errorf("Pusher = %T, want *services.DirectPusher", res.Pusher)
	}
}

func TestCreateRemote_SheetsRequiresSpreadsheet(t *testing.T) {
	f := NewFactory(nil, nil)
	_, err := f.CreateRemote(context.Background(), Config{
		Remote:                   SheetsRemote,
		GoogleServiceAccountJSON: "{}",
	}, nil)
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestEndpointURL(t *testing.T) {
	settings := core.DefaultSettings()
	current := func() core.Settings { return settings }

	tests := []struct {
		name     string
		override string
		setting  string
		want     string
	}{
		{name: "setting only", setting: "https://a.example/exec", want: "https://a.example/exec"},
		{name: "override wins", override: "https://b.example/exec", setting: "https://a.example/exec", want: "https://b.example/exec"},
		{name: "nothing configured", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings.AppScriptURL = tt.setting
			if got := endpointURL(tt.override, current)(); got != tt.want {
				t.Errorf("endpointURL() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("follows setting changes", func(t *testing.T) {
		settings.AppScriptURL = "https://old.example/exec"
		url := endpointURL("", current)
		settings.AppScriptURL = "https://new.example/exec"
		if got := url(); got != "https://new.example/exec" {
			t.Errorf("endpointURL() = %q, want the updated setting", got)
		}
	})
}
