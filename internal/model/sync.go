package model

import "time"

// Provider identifies an external calendar source.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
	ProviderICS     Provider = "ics"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderOutlook, ProviderICS:
		return true
	}
	return false
}

// CalendarSyncConfig is one external calendar connection, identified by
// provider and name together.
type CalendarSyncConfig struct {
	Provider     Provider   `json:"provider"`
	Name         string     `json:"name"`
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	TokenExpiry  *time.Time `json:"tokenExpiry,omitempty"`
	CalendarID   string     `json:"calendarId"`
	LastSync     *time.Time `json:"lastSync,omitempty"`
}
