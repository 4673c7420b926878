package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Setting keys. Each is stored as its own row so partial reads and writes stay cheap.
const (
	KeyCurrentWeekType         = "currentWeekType"
	KeyCurrentView             = "currentView"
	KeyMonthlyViewEnabled      = "monthlyViewEnabled"
	KeyTimezone                = "timezone"
	KeyTimeFormat              = "timeFormat"
	KeyOAuthClientIDs          = "oauthClientIds"
	KeyDefaultPublicVisibility = "defaultPublicVisibility"
	KeyPermalinkBaseURL        = "permalinkBaseUrl"

	// KeyHasInitialized marks that default data has been seeded once.
	KeyHasInitialized = "hasInitialized"
)

// SettingKeys lists the user-facing setting keys.
var SettingKeys = []string{
	KeyCurrentWeekType,
	KeyCurrentView,
	KeyMonthlyViewEnabled,
	KeyTimezone,
	KeyTimeFormat,
	KeyOAuthClientIDs,
	KeyDefaultPublicVisibility,
	KeyPermalinkBaseURL,
}

// TimeFormat selects how clock strings are rendered.
type TimeFormat string

const (
	TimeFormat12h TimeFormat = "12h"
	TimeFormat24h TimeFormat = "24h"
)

// Views the UI can switch between.
const (
	ViewWeek    = "week"
	ViewDay     = "day"
	ViewMonthly = "monthly"
)

// Settings is the typed application settings record. Defaults are resolved
// once in SettingsFromMap.
type Settings struct {
	CurrentWeekType         WeekType            `json:"currentWeekType"`
	CurrentView             string              `json:"currentView"`
	MonthlyViewEnabled      bool                `json:"monthlyViewEnabled"`
	Timezone                string              `json:"timezone,omitempty"`
	TimeFormat              TimeFormat          `json:"timeFormat"`
	OAuthClientIDs          map[Provider]string `json:"oauthClientIds,omitempty"`
	DefaultPublicVisibility bool                `json:"defaultPublicVisibility"`
	PermalinkBaseURL        string              `json:"permalinkBaseUrl,omitempty"`
}

// DefaultSettings returns the settings used when nothing is stored.
func DefaultSettings() Settings {
	return Settings{
		CurrentWeekType: WeekA,
		CurrentView:     ViewWeek,
		TimeFormat:      TimeFormat12h,
	}
}

// SettingsFromMap resolves stored key/value rows into a typed record,
// falling back to defaults for missing or malformed values.
func SettingsFromMap(values map[string]string) Settings {
	s := DefaultSettings()

	if v := WeekType(values[KeyCurrentWeekType]); v.Valid() {
		s.CurrentWeekType = v
	}
	switch v := values[KeyCurrentView]; v {
	case ViewWeek, ViewDay, ViewMonthly:
		s.CurrentView = v
	}
	if b, err := strconv.ParseBool(values[KeyMonthlyViewEnabled]); err == nil {
		s.MonthlyViewEnabled = b
	}
	s.Timezone = strings.TrimSpace(values[KeyTimezone])
	switch v := TimeFormat(values[KeyTimeFormat]); v {
	case TimeFormat12h, TimeFormat24h:
		s.TimeFormat = v
	}
	if raw := values[KeyOAuthClientIDs]; raw != "" {
		var ids map[Provider]string
		if err := json.Unmarshal([]byte(raw), &ids); err == nil && len(ids) > 0 {
			s.OAuthClientIDs = ids
		}
	}
	if b, err := strconv.ParseBool(values[KeyDefaultPublicVisibility]); err == nil {
		s.DefaultPublicVisibility = b
	}
	s.PermalinkBaseURL = strings.TrimSpace(values[KeyPermalinkBaseURL])
	return s
}

// Entries flattens s back into independent key/value rows.
func (s Settings) Entries() map[string]string {
	out := map[string]string{
		KeyCurrentWeekType:         string(s.CurrentWeekType),
		KeyCurrentView:             s.CurrentView,
		KeyMonthlyViewEnabled:      strconv.FormatBool(s.MonthlyViewEnabled),
		KeyTimezone:                s.Timezone,
		KeyTimeFormat:              string(s.TimeFormat),
		KeyDefaultPublicVisibility: strconv.FormatBool(s.DefaultPublicVisibility),
		KeyPermalinkBaseURL:        s.PermalinkBaseURL,
	}
	ids := s.OAuthClientIDs
	if ids == nil {
		ids = map[Provider]string{}
	}
	data, _ := json.Marshal(ids)
	out[KeyOAuthClientIDs] = string(data)
	return out
}
