package entity

import "encoding/json"

type TransferStatus struct {
	TrackingID string          `json:"trackingId,omitempty"`
	Status     string          `json:"status"`
	Raw        json.RawMessage `json:"-"`
}

type PasswordRule struct {
	Name    string         `json:"name"`
	Details map[string]any `json:"details"`
}

type Verification struct {
	Verified   bool   `json:"verified"`
	ValidUntil string `json:"validUntil"`
}

type RemoteFile struct {
	FileName string `json:"fileName"`
	Href     string `json:"href"`
	Size     int64  `json:"size"`
}
