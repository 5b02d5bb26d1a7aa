package config

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"
)

// DefaultNetwork is used when no network is configured.
const DefaultNetwork = "bsc-pancake-v2"

// Network describes one UniswapV2-style deployment.
type Network struct {
	Name          string
	ChainID       *big.Int
	Factory       common.Address
	InitCodeHash  common.Hash
	Router        common.Address
	WrappedNative common.Address
	PermitVersion string
}

var presets = map[string]Network{
	"bsc-pancake-v2": {
		Name:          "bsc-pancake-v2",
		ChainID:       big.NewInt(56),
		Factory:       common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"),
		InitCodeHash:  common.HexToHash("0x00fb7f630766e6a796048ea87d01acd3068e8ff67d078148a3fa3f4a84f69bd5"),
		Router:        common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
		WrappedNative: common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
		PermitVersion: "1",
	},
	"eth-uniswap-v2": {
		Name:          "eth-uniswap-v2",
		ChainID:       big.NewInt(1),
		Factory:       common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		InitCodeHash:  common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
		Router:        common.HexToAddress("0x7a250d5630B4cf539739dF2C5dAcb4c659F2488D"),
		WrappedNative: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		PermitVersion: "1",
	},
}

// Preset returns a copy of a named network preset.
func Preset(name string) (Network, bool) {
	n, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Network{}, false
	}
	n.ChainID = new(big.Int).Set(n.ChainID)
	return n, true
}

// PresetNames lists the known presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveNetwork starts from the named preset ("custom" starts empty) and
// applies any explicit overrides.
func resolveNetwork(v *viper.Viper) (Network, error) {
	name := v.GetString("network")
	var n Network
	if strings.EqualFold(name, "custom") {
		n = Network{Name: "custom", PermitVersion: "1"}
	} else {
		preset, ok := Preset(name)
		if !ok {
			return Network{}, fmt.Errorf("unknown network %q (known: %s, custom)", name, strings.Join(PresetNames(), ", "))
		}
		n = preset
	}

	if s := v.GetString("chain-id"); s != "" && s != "0" {
		id, ok := new(big.Int).SetString(s, 10)
		if !ok || id.Sign() <= 0 {
			return Network{}, fmt.Errorf("invalid chain id: %s", s)
		}
		n.ChainID = id
	}
	if err := overrideAddress(v, "factory", &n.Factory); err != nil {
		return Network{}, err
	}
	if err := overrideAddress(v, "router", &n.Router); err != nil {
		return Network{}, err
	}
	if err := overrideAddress(v, "wrapped-native", &n.WrappedNative); err != nil {
		return Network{}, err
	}
	if s := v.GetString("init-code-hash"); s != "" {
		data, err := hexutil.Decode(s)
		if err != nil || len(data) != common.HashLength {
			return Network{}, fmt.Errorf("invalid init code hash: %s", s)
		}
		n.InitCodeHash = common.BytesToHash(data)
	}
	if s := v.GetString("permit-version"); s != "" {
		n.PermitVersion = s
	}

	if n.Factory == (common.Address{}) {
		return Network{}, fmt.Errorf("factory address is required for network %s", n.Name)
	}
	if n.InitCodeHash == (common.Hash{}) {
		return Network{}, fmt.Errorf("init code hash is required for network %s", n.Name)
	}
	return n, nil
}

func overrideAddress(v *viper.Viper, key string, dst *common.Address) error {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return nil
	}
	if !common.IsHexAddress(s) {
		return fmt.Errorf("invalid %s address: %s", key, s)
	}
	*dst = common.HexToAddress(s)
	return nil
}
