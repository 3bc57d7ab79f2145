package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	ThemeIndigo Theme = "indigo"
	ThemeOrange Theme = "orange"
	ThemeRed    Theme = "red"
	ThemeYellow Theme = "yellow"

	DefaultDailyLimit int64 = 500000
)

type Theme string

// Settings are the user preferences owned by the ledger store.
type Settings struct {
	InitialBalance      int64    `json:"initialBalance"`
	DailyLimit          int64    `json:"dailyLimit"`
	AppScriptURL        string   `json:"appScriptUrl"`
	TelegramChatID      string   `json:"telegramChatId"`
	NotificationEnabled bool     `json:"notificationEnabled"`
	NotificationTimes   []string `json:"notificationTimes"`
	ThemeColor          Theme    `json:"themeColor"`
}

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func DefaultNotificationTimes() []string {
	return []string{"09:00", "12:00", "20:00"}
}

// DefaultSettings returns the settings used when nothing has been persisted.
func DefaultSettings() Settings {
	return Settings{
		InitialBalance:    0,
		DailyLimit:        DefaultDailyLimit,
		NotificationTimes: DefaultNotificationTimes(),
		ThemeColor:        ThemeIndigo,
	}
}

func (t Theme) Valid() bool {
	switch t {
	case ThemeIndigo, ThemeOrange, ThemeRed, ThemeYellow:
		return true
	}
	return false
}

// storedSettings mirrors the persisted shape, including the legacy single
// notificationTime field.
type storedSettings struct {
	InitialBalance      *int64   `json:"initialBalance"`
	DailyLimit          *int64   `json:"dailyLimit"`
	AppScriptURL        string   `json:"appScriptUrl"`
	TelegramChatID      string   `json:"telegramChatId"`
	NotificationEnabled bool     `json:"notificationEnabled"`
	NotificationTimes   []string `json:"notificationTimes"`
	NotificationTime    string   `json:"notificationTime"`
	ThemeColor          Theme    `json:"themeColor"`
}

// DecodeSettings parses persisted settings, filling defaults for missing
// fields and migrating the legacy notificationTime value.
func DecodeSettings(data []byte) (Settings, error) {
	var raw storedSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}

	s := DefaultSettings()
	if raw.InitialBalance != nil {
		s.InitialBalance = *raw.InitialBalance
	}
	if raw.DailyLimit != nil && *raw.DailyLimit != 0 {
		s.DailyLimit = *raw.DailyLimit
	}
	s.AppScriptURL = strings.TrimSpace(raw.AppScriptURL)
	s.TelegramChatID = strings.TrimSpace(raw.TelegramChatID)
	s.NotificationEnabled = raw.NotificationEnabled

	switch {
	case raw.NotificationTimes != nil:
		s.NotificationTimes = raw.NotificationTimes
	case raw.NotificationTime != "":
		s.NotificationTimes = []string{raw.NotificationTime}
	}
	if raw.ThemeColor.Valid() {
		s.ThemeColor = raw.ThemeColor
	}
	return s, nil
}

// Validate rejects settings a user cannot save.
func (s Settings) Validate() error {
	if s.DailyLimit < 0 {
		return fmt.Errorf("%w: daily limit must not be negative: %d", ErrInvalidSettings, s.DailyLimit)
	}
	for _, t := range s.NotificationTimes {
		if !clockRe.MatchString(t) {
			return fmt.Errorf("%w: notification time %q is not HH:MM", ErrInvalidSettings, t)
		}
	}
	if s.ThemeColor != "" && !s.ThemeColor.Valid() {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidSettings, s.ThemeColor)
	}
	return nil
}
