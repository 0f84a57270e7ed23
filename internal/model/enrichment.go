package model

// Enrichment is server-derived network metadata. Unknown values are null on
// the wire; detection flags default to false.
type Enrichment struct {
	IPHash      *string `json:"ip_hash"`
	Country     *string `json:"country"`
	City        *string `json:"city"`
	ISP         *string `json:"isp"`
	VPNDetected bool    `json:"vpn_detected"`
	TorDetected bool    `json:"tor_detected"`
}
