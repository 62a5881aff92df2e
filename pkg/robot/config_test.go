package robot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/dominobot/pkg/dxl"
	"github.com/gwillem/dominobot/pkg/motion"
)

func TestConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServoIDs = []int{1, 2, 3}
	cfg.Mode = motion.Controlled
	cfg.ClampPort = "/dev/ttyUSB1"

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestConfig_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DefaultConfig().Encode(&buf))
	b := buf.Bytes()

	want := []byte{
		0, 0, 0, 0, // version
		0, 0, 0x25, 0x80, // 9600
		0, 0, 0, 8, 0, 'C', 0, 'O', 0, 'M', 0, '3',
		0, 0x0F, 0x42, 0x40, // 1000000
	}
	require.GreaterOrEqual(t, len(b), len(want))
	assert.Equal(t, want, b[:len(want)])

	// string + speed + mode + count + 4 ids
	assert.Len(t, b, len(want)+4+8+8+4+4+4*4)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, b[len(b)-4:], "unassigned slot")
}

func TestConfig_Unicode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServoPort = "/dev/tty.usbserial-ü𝄞"

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg.ServoPort, got.ServoPort)
}

func TestConfig_DecodeErrors(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DefaultConfig().Encode(&buf))
	good := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong version", append([]byte{0, 0, 0, 1}, good[4:]...)},
		{"truncated", good[:len(good)-2]},
		{"odd string length", append(append([]byte{}, good[:8]...), 0, 0, 0, 3, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(tt.data))
			var ce *ConfigError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, DefaultConfigFile)

	_, err := LoadConfig(file)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, file, ce.Path)
	assert.False(t, ConfigExists(file))

	cfg := DefaultConfig()
	cfg.Speed = 42.5
	require.NoError(t, cfg.Save(file))
	assert.True(t, ConfigExists(file))

	got, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	require.NoError(t, os.WriteFile(file, []byte{0, 0, 0, 9}, 0644))
	_, err = LoadConfig(file)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, file, ce.Path)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		ids []int
		ok  bool
	}{
		{[]int{1, 2, 3}, true},
		{[]int{1, 2, 3, 4}, true},
		{[]int{-1, -1, -1, -1}, true},
		{[]int{1, 2}, false},
		{[]int{1, 2, 3, 4, 5}, false},
		{[]int{1, 2, 1}, false},
		{[]int{1, 2, 254}, false},
		{[]int{1, 2, -2}, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.ServoIDs = tt.ids
		err := cfg.Validate()
		if tt.ok {
			assert.NoError(t, err, "%v", tt.ids)
		} else {
			assert.Error(t, err, "%v", tt.ids)
		}
	}

	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.ServoIDs[0] = 7
	assert.Equal(t, dxl.Unassigned, cfg.ServoIDs[0])
}
