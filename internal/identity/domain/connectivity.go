package domain

import "time"

type QualityTier string

const (
	QualityNone     QualityTier = "none"
	QualityCellular QualityTier = "cellular"
	QualityWiFi     QualityTier = "wifi"
	QualityEthernet QualityTier = "ethernet"
	QualityUnknown  QualityTier = "unknown"
)

type ConnectivityState struct {
	Connected bool        `json:"connected"`
	Reachable bool        `json:"reachable"`
	Quality   QualityTier `json:"quality"`
	CheckedAt time.Time   `json:"checked_at"`
}
