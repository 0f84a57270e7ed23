package fingerprint

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DovakiinZ/Sin-City-sub001/pkg/hash"
)

var hashRe = regexp.MustCompile(`^[0-9a-f]{8}$`)

type staticEnv Attributes

func (e staticEnv) Attributes() Attributes { return Attributes(e) }

type fixedCanvas string

func (c fixedCanvas) DataURL(string, int, int) (string, error) { return string(c), nil }

type failingCanvas struct{}

func (failingCanvas) DataURL(string, int, int) (string, error) {
	return "", errors.New("getContext returned null")
}

type panickingCanvas struct{}

func (panickingCanvas) DataURL(string, int, int) (string, error) {
	panic("canvas unavailable")
}

func browserEnv() staticEnv {
	mem := 8.0
	cores := 12
	return staticEnv{
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		ScreenWidth:         2560,
		ScreenHeight:        1440,
		ColorDepth:          24,
		Timezone:            "Europe/Berlin",
		Language:            "de-DE",
		Platform:            "Linux x86_64",
		TouchPoints:         0,
		DeviceMemory:        &mem,
		HardwareConcurrency: &cores,
	}
}

func TestDerive_Deterministic(t *testing.T) {
	d := NewDeriver(browserEnv(), fixedCanvas("data:image/png;base64,AAAA"))

	first := d.Derive()
	for i := 0; i < 5; i++ {
		again := d.Derive()
		assert.Equal(t, first.Hash, again.Hash)
		assert.Equal(t, first.Signature, again.Signature)
	}
	assert.Regexp(t, hashRe, first.Hash)
}

func TestDerive_SignatureFieldOrder(t *testing.T) {
	d := NewDeriver(browserEnv(), fixedCanvas("data:image/png;base64,AAAA"))
	fp := d.Derive()

	want := strings.Join([]string{
		"Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		"2560x1440",
		"Europe/Berlin",
		"de-DE",
		"Linux x86_64",
		"24",
		"false",
		"8",
		"12",
		hash.RollingHex("data:image/png;base64,AAAA"),
	}, "|")
	assert.Equal(t, want, fp.Signature.String())
	assert.Equal(t, hash.RollingHex(want), fp.Hash)
}

func TestDerive_CanvasFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		canvas Canvas
		want   string
	}{
		{"no canvas", nil, NoCanvas},
		{"canvas error", failingCanvas{}, CanvasError},
		{"canvas panics", panickingCanvas{}, CanvasError},
		{"empty data url", fixedCanvas(""), CanvasError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fp Fingerprint
			require.NotPanics(t, func() {
				fp = NewDeriver(browserEnv(), tt.canvas).Derive()
			})
			assert.Equal(t, tt.want, fp.Signature.CanvasChecksum)
			assert.Regexp(t, hashRe, fp.Hash)
		})
	}
}

func TestDerive_MissingAttributesUseUnknown(t *testing.T) {
	fp := NewDeriver(staticEnv{}, nil).Derive()

	sig := fp.Signature
	assert.Equal(t, Unknown, sig.UserAgent)
	assert.Equal(t, Unknown, sig.Screen)
	assert.Equal(t, Unknown, sig.Timezone)
	assert.Equal(t, Unknown, sig.Language)
	assert.Equal(t, Unknown, sig.Platform)
	assert.Equal(t, Unknown, sig.ColorDepth)
	assert.Equal(t, "false", sig.TouchSupport)
	assert.Equal(t, Unknown, sig.DeviceMemory)
	assert.Equal(t, Unknown, sig.HardwareConcurrency)
	assert.Regexp(t, hashRe, fp.Hash)
}

func TestDerive_NilEnvironment(t *testing.T) {
	fp := NewDeriver(nil, nil).Derive()
	assert.Regexp(t, hashRe, fp.Hash)
}

func TestDerive_AttributeChangeChangesHash(t *testing.T) {
	canvas := fixedCanvas("data:image/png;base64,AAAA")
	base := NewDeriver(browserEnv(), canvas).Derive()

	env := browserEnv()
	env.Timezone = "America/New_York"
	moved := NewDeriver(env, canvas).Derive()

	assert.NotEqual(t, base.Hash, moved.Hash)
}

func TestGGCanvas_DataURL(t *testing.T) {
	c := GGCanvas{}

	url, err := c.DataURL(CanvasText, CanvasWidth, CanvasHeight)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	again, err := c.DataURL(CanvasText, CanvasWidth, CanvasHeight)
	require.NoError(t, err)
	assert.Equal(t, url, again)

	_, err = c.DataURL(CanvasText, 0, CanvasHeight)
	assert.Error(t, err)
}

func TestHostEnvironment_Derives(t *testing.T) {
	fp := NewDeriver(HostEnvironment{Product: "guestctl/test"}, GGCanvas{}).Derive()
	assert.Regexp(t, hashRe, fp.Hash)
	assert.True(t, strings.HasPrefix(fp.Signature.UserAgent, "guestctl/test ("))
	assert.NotEqual(t, NoCanvas, fp.Signature.CanvasChecksum)
	assert.NotEqual(t, CanvasError, fp.Signature.CanvasChecksum)
}
