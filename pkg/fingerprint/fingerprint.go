// Package fingerprint derives a best-effort device identifier from
// environment attributes.
//
// The resulting hash is a heuristic for recognising a returning anonymous
// visitor. It is not collision resistant and must never be treated as a
// security control or an authentication factor.
package fingerprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DovakiinZ/Sin-City-sub001/pkg/hash"
)

const (
	Delimiter = "|"
	Unknown   = "unknown"

	// Canvas checksum sentinels.
	NoCanvas    = "no-canvas"
	CanvasError = "canvas-error"

	CanvasText   = "retro-terminal-fp"
	CanvasWidth  = 200
	CanvasHeight = 50
)

// Attributes is the raw environment read. Zero values and nil pointers mean
// the attribute was not available.
type Attributes struct {
	UserAgent           string
	ScreenWidth         int
	ScreenHeight        int
	ColorDepth          int
	Timezone            string
	Language            string
	Platform            string
	TouchPoints         int
	DeviceMemory        *float64
	HardwareConcurrency *int
}

// Environment supplies the attributes a fingerprint is derived from.
type Environment interface {
	Attributes() Attributes
}

// Signature is the DeviceSignature tuple in its fixed field order. It is
// ephemeral and only ever persisted as its hash.
type Signature struct {
	UserAgent           string `json:"userAgent"`
	Screen              string `json:"screen"`
	Timezone            string `json:"timezone"`
	Language            string `json:"language"`
	Platform            string `json:"platform"`
	ColorDepth          string `json:"colorDepth"`
	TouchSupport        string `json:"touchSupport"`
	DeviceMemory        string `json:"deviceMemory"`
	HardwareConcurrency string `json:"hardwareConcurrency"`
	CanvasChecksum      string `json:"canvasChecksum"`
}

// String joins the fields with Delimiter in the fixed order.
func (s Signature) String() string {
	return strings.Join([]string{
		s.UserAgent,
		s.Screen,
		s.Timezone,
		s.Language,
		s.Platform,
		s.ColorDepth,
		s.TouchSupport,
		s.DeviceMemory,
		s.HardwareConcurrency,
		s.CanvasChecksum,
	}, Delimiter)
}

// Hash returns the FingerprintHash of the signature.
func (s Signature) Hash() string {
	return hash.RollingHex(s.String())
}

// Fingerprint pairs a signature with its hash.
type Fingerprint struct {
	Signature Signature `json:"signature"`
	Hash      string    `json:"hash"`
}

// Deriver computes fingerprints. Canvas may be nil.
type Deriver struct {
	env    Environment
	canvas Canvas
}

func NewDeriver(env Environment, canvas Canvas) *Deriver {
	return &Deriver{env: env, canvas: canvas}
}

// Derive always produces a fingerprint: missing attributes and canvas
// failures are replaced by literal fallbacks.
func (d *Deriver) Derive() Fingerprint {
	var attrs Attributes
	if d.env != nil {
		attrs = d.env.Attributes()
	}
	sig := BuildSignature(attrs, CanvasChecksum(d.canvas))
	return Fingerprint{Signature: sig, Hash: sig.Hash()}
}

// BuildSignature coerces attributes to their string form.
func BuildSignature(a Attributes, canvasChecksum string) Signature {
	sig := Signature{
		UserAgent:           orUnknown(a.UserAgent),
		Screen:              Unknown,
		Timezone:            orUnknown(a.Timezone),
		Language:            orUnknown(a.Language),
		Platform:            orUnknown(a.Platform),
		ColorDepth:          Unknown,
		TouchSupport:        strconv.FormatBool(a.TouchPoints > 0),
		DeviceMemory:        Unknown,
		HardwareConcurrency: Unknown,
		CanvasChecksum:      orUnknown(canvasChecksum),
	}
	if a.ScreenWidth > 0 && a.ScreenHeight > 0 {
		sig.Screen = fmt.Sprintf("%dx%d", a.ScreenWidth, a.ScreenHeight)
	}
	if a.ColorDepth > 0 {
		sig.ColorDepth = strconv.Itoa(a.ColorDepth)
	}
	if a.DeviceMemory != nil {
		sig.DeviceMemory = strconv.FormatFloat(*a.DeviceMemory, 'f', -1, 64)
	}
	if a.HardwareConcurrency != nil {
		sig.HardwareConcurrency = strconv.Itoa(*a.HardwareConcurrency)
	}
	return sig
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return Unknown
	}
	return v
}
