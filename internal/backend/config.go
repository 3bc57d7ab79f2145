package backend

import (
	"fmt"

	"finbot/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		KV:     KVType(appConfig.DataBackend),
		Remote: RemoteType(appConfig.RemoteBackend),
		Push:   PushMode(appConfig.PushMode),

		SQLiteDBPath: appConfig.SQLiteDBPath,

		RemoteURL:     appConfig.RemoteURL,
		RemoteTimeout: appConfig.RemoteTimeout,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.KV.IsValid() {
		return fmt.Errorf("invalid data backend: %s", c.KV)
	}
	if !c.Remote.IsValid() {
		return fmt.Errorf("invalid remote backend: %s", c.Remote)
	}
	if !c.Push.IsValid() {
		return fmt.Errorf("invalid push mode: %s", c.Push)
	}

	if c.KV == SQLiteKV && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	if c.Remote == SheetsRemote {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets remote")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets remote")
		}
	}

	if c.Push == AMQPPush && (c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP connection settings are required for amqp push mode")
	}

	return nil
}
