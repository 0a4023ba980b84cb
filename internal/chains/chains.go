package chains

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Blockchain struct {
	// ID short string chain id as returned by starknet_chainId once decoded
	ID      string
	IDHex   string
	Name    string
	Testnet bool
}

var (
	Mainnet = &Blockchain{
		ID:    "SN_MAIN",
		IDHex: "0x534e5f4d41494e",
		Name:  "mainnet-alpha",
	}
	Goerli = &Blockchain{
		ID:      "SN_GOERLI",
		IDHex:   "0x534e5f474f45524c49",
		Name:    "goerli-alpha",
		Testnet: true,
	}
	Sepolia = &Blockchain{
		ID:      "SN_SEPOLIA",
		IDHex:   "0x534e5f5345504f4c4941",
		Name:    "sepolia-alpha",
		Testnet: true,
	}

	Array = []*Blockchain{Mainnet, Goerli, Sepolia}

	// Mapping hex chain id => chain
	Mapping = func() map[string]*Blockchain {
		m := make(map[string]*Blockchain, len(Array))
		for _, c := range Array {
			m[c.IDHex] = c
		}
		return m
	}()
)

// FromHex looks a chain up by its hex chain id, case-insensitive.
func FromHex(idHex string) (*Blockchain, bool) {
	c, ok := Mapping[strings.ToLower(idHex)]
	return c, ok
}

// DecodeShortString decodes a hex felt holding an ascii short string, e.g. 0x534e5f4d41494e => SN_MAIN.
func DecodeShortString(idHex string) (string, error) {
	raw, err := hexutil.Decode(idHex)
	if err != nil {
		return "", err
	}
	return strings.TrimLeft(string(raw), "\x00"), nil
}
