package types

import "time"

type ScanRequest struct {
	ReaderID string `json:"reader_id,omitempty"`
	CardTag  string `json:"card_tag"`
}

type ScanResponse struct {
	OK            bool      `json:"ok"`
	CardTag       string    `json:"card_tag"`
	Direction     Direction `json:"direction"`
	DirectionName string    `json:"direction_name"`
	ServerTime    string    `json:"server_time"`
}

func NewScanResponse(e LedgerEntry, now time.Time) ScanResponse {
	return ScanResponse{
		OK:            true,
		CardTag:       e.Tag.String(),
		Direction:     e.Direction,
		DirectionName: e.Direction.String(),
		ServerTime:    now.UTC().Format(time.RFC3339Nano),
	}
}

type PresenceResponse struct {
	CardTag string `json:"card_tag"`
	Present bool   `json:"present"`
}

type ResetResponse struct {
	OK         bool   `json:"ok"`
	ServerTime string `json:"server_time"`
}
