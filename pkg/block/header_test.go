package block

import (
	"encoding/json"
	"testing"

	"github.com/cellchain/cellwallet/pkg/types"
)

func TestHeaderHash(t *testing.T) {
	h := Header{
		Version:    1,
		Height:     42,
		ParentHash: types.Hash{0x01},
		TxRoot:     types.Hash{0x02},
		Timestamp:  1700000000,
	}

	if h.Hash() != h.Hash() {
		t.Error("header hash is not deterministic")
	}

	for name, mutate := range map[string]func(*Header){
		"version":   func(m *Header) { m.Version++ },
		"height":    func(m *Header) { m.Height++ },
		"parent":    func(m *Header) { m.ParentHash[0] ^= 0xff },
		"tx root":   func(m *Header) { m.TxRoot[0] ^= 0xff },
		"timestamp": func(m *Header) { m.Timestamp++ },
	} {
		m := h
		mutate(&m)
		if m.Hash() == h.Hash() {
			t.Errorf("changing %s did not change the hash", name)
		}
	}
}

func TestHeaderJSONRoundTrip(t *testing.T) {
	h := Header{
		Version:    1,
		Height:     7,
		ParentHash: types.Hash{0xaa},
		TxRoot:     types.Hash{0xbb},
		Timestamp:  123456,
	}

	data, err := json.Marshal(&h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Header
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Hash() != h.Hash() {
		t.Error("hash changed through JSON round trip")
	}
}
