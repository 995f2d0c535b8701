package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonDoc = `{
  "CONTRACT_ADDRESS": "0x00000000000000000000000000000000000000c0",
  "SCAN_LINK": "https://bscscan.com/address/0x00000000000000000000000000000000000000c0",
  "NETWORK": {"NAME": "BNB Smart Chain", "SYMBOL": "BNB", "ID": 56},
  "NFT_NAME": "MIKUL PACK",
  "SYMBOL": "MIKUL",
  "SHOW_BACKGROUND": true
}`

func TestParseDocumentJSON(t *testing.T) {
	doc, err := ParseDocument([]byte(jsonDoc))
	require.NoError(t, err)
	assert.Equal(t, "0x00000000000000000000000000000000000000c0", doc.ContractAddress)
	assert.Equal(t, Network{Name: "BNB Smart Chain", Symbol: "BNB", ID: 56}, doc.Network)
	assert.Equal(t, "MIKUL PACK", doc.NFTName)
	assert.True(t, doc.ShowBackground)
	assert.Equal(t, DefaultGasLimit, doc.GasLimit)
}

func TestParseDocumentYAML(t *testing.T) {
	doc, err := ParseDocument([]byte("CONTRACT_ADDRESS: \" 0xabc \"\nGAS_LIMIT: 500000\nNETWORK:\n  NAME: Sepolia\n  ID: 11155111\n"))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", doc.ContractAddress)
	assert.Equal(t, uint64(500000), doc.GasLimit)
	assert.Equal(t, uint64(11155111), doc.Network.ID)
}

func TestParseDocumentInvalid(t *testing.T) {
	_, err := ParseDocument([]byte("NETWORK: [1, 2"))
	assert.Error(t, err)
}

func TestLoadDocumentMissingFile(t *testing.T) {
	doc, ok, err := LoadDocument(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, DefaultDocument(), doc)
}

func TestLoadAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonDoc), 0o600))

	t.Setenv("LOOTBOARD_CONFIG", path)
	t.Setenv("GAS_LIMIT", "1234")
	t.Setenv("NETWORK_NAME", "Local")
	t.Setenv("RPC_URLS", "http://a:8545, http://b:8545")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Loaded)
	assert.Equal(t, uint64(1234), cfg.GasLimit)
	assert.Equal(t, "Local", cfg.Network.Name)
	assert.Equal(t, []string{"http://a:8545", "http://b:8545"}, cfg.Service.RPCEndpoints)
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.ActionsEnabled())
	assert.Equal(t, "Please connect to the Local network.", cfg.WrongNetworkMessage())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		ok   bool
	}{
		{"nil", nil, false},
		{"not loaded", &Config{Document: Document{ContractAddress: "0x00000000000000000000000000000000000000c0"}}, false},
		{"empty address", &Config{Loaded: true}, false},
		{"malformed address", &Config{Loaded: true, Document: Document{ContractAddress: "0x12"}}, false},
		{"valid", &Config{Loaded: true, Document: Document{ContractAddress: "0x00000000000000000000000000000000000000c0"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrMissingContract)
		})
	}
}

func TestLoadWithoutDocument(t *testing.T) {
	t.Setenv("LOOTBOARD_CONFIG", filepath.Join(t.TempDir(), "none.json"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.ActionsEnabled())

	t.Setenv("CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000c0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.ActionsEnabled())
}
