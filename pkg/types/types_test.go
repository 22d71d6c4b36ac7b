package types

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(i + 1)
	}

	s := a.String()
	if !strings.HasPrefix(s, MainnetHRP+"1") {
		t.Fatalf("address %q missing %q prefix", s, MainnetHRP+"1")
	}

	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	if parsed != a {
		t.Errorf("round trip mismatch: %s != %s", parsed.Hex(), a.Hex())
	}
}

func TestAddressHRPSwitch(t *testing.T) {
	defer SetAddressHRP(MainnetHRP)

	var a Address
	a[0] = 0x42

	SetAddressHRP(TestnetHRP)
	s := a.String()
	if !strings.HasPrefix(s, TestnetHRP+"1") {
		t.Fatalf("testnet address %q missing %q prefix", s, TestnetHRP+"1")
	}

	// Decoding accepts either HRP; the payload is what matters.
	parsed, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != a {
		t.Error("testnet round trip mismatch")
	}
}

func TestParseAddress_HexFallback(t *testing.T) {
	var a Address
	for i := range a {
		a[i] = byte(0xa0 + i)
	}

	parsed, err := ParseAddress(a.Hex())
	if err != nil {
		t.Fatalf("ParseAddress(hex): %v", err)
	}
	if parsed != a {
		t.Error("hex round trip mismatch")
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"cel1qqqq", // truncated payload
		"zzzz",
		"deadbeef", // hex but wrong length
	} {
		if _, err := ParseAddress(s); err == nil {
			t.Errorf("ParseAddress(%q) succeeded, want error", s)
		}
	}
}

func TestAddressBech32_ChecksumRejected(t *testing.T) {
	var a Address
	a[0] = 0x01
	s := a.String()

	// Flip a payload character.
	corrupted := []byte(s)
	last := len(corrupted) - 1
	if corrupted[last] == 'q' {
		corrupted[last] = 'p'
	} else {
		corrupted[last] = 'q'
	}
	if _, err := ParseAddress(string(corrupted)); err == nil {
		t.Error("corrupted bech32 address accepted")
	}
}

func TestAddressJSON(t *testing.T) {
	var a Address
	a[5] = 0x7f

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Address
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != a {
		t.Error("JSON round trip mismatch")
	}
}

func TestAddressScript(t *testing.T) {
	var a Address
	a[0] = 0x99

	s := a.Script()
	if s.CodeHash != SigLockCodeHash() {
		t.Error("address script has wrong code hash")
	}
	if !bytes.Equal(s.Args, a.Bytes()) {
		t.Error("address script args are not the address bytes")
	}
}

func TestOutPointBytesRoundTrip(t *testing.T) {
	op := OutPoint{TxHash: Hash{0xde, 0xad}, Index: 0x01020304}

	b := op.Bytes()
	if len(b) != OutPointSize {
		t.Fatalf("encoded length %d, want %d", len(b), OutPointSize)
	}
	decoded, err := OutPointFromBytes(b)
	if err != nil {
		t.Fatalf("OutPointFromBytes: %v", err)
	}
	if decoded != op {
		t.Errorf("round trip mismatch: %s != %s", decoded, op)
	}

	if _, err := OutPointFromBytes(b[:OutPointSize-1]); err == nil {
		t.Error("short encoding accepted")
	}
}

func TestOutPointCompare(t *testing.T) {
	a := OutPoint{TxHash: Hash{0x01}, Index: 5}
	b := OutPoint{TxHash: Hash{0x01}, Index: 6}
	c := OutPoint{TxHash: Hash{0x02}, Index: 0}

	if a.Compare(b) != -1 || b.Compare(a) != 1 {
		t.Error("index comparison wrong")
	}
	if b.Compare(c) != -1 {
		t.Error("tx hash comparison must dominate index")
	}
	if a.Compare(a) != 0 {
		t.Error("self comparison not zero")
	}

	// Compare agrees with the byte encoding, which the lock index sorts by.
	if got, want := a.Compare(b), bytes.Compare(a.Bytes(), b.Bytes()); got != want {
		t.Errorf("Compare = %d, bytes.Compare = %d", got, want)
	}
}

func TestOutPointIsZero(t *testing.T) {
	if !(OutPoint{}).IsZero() {
		t.Error("zero outpoint not reported as zero")
	}
	if (OutPoint{Index: 1}).IsZero() {
		t.Error("nonzero index reported as zero")
	}
	if (OutPoint{TxHash: Hash{0x01}}).IsZero() {
		t.Error("nonzero hash reported as zero")
	}
}

func TestScriptJSONRoundTrip(t *testing.T) {
	s := Script{CodeHash: SigLockCodeHash(), Args: []byte{0x01, 0x02, 0x03}}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"args":"010203"`) {
		t.Errorf("args not hex encoded: %s", data)
	}

	var decoded Script
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.CodeHash != s.CodeHash || !bytes.Equal(decoded.Args, s.Args) {
		t.Error("JSON round trip mismatch")
	}
}

func TestHashJSONRoundTrip(t *testing.T) {
	h := Hash{0xab, 0xcd}

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Hash
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != h {
		t.Error("JSON round trip mismatch")
	}

	var bad Hash
	if err := json.Unmarshal([]byte(`"abcd"`), &bad); err == nil {
		t.Error("short hash hex accepted")
	}
}

func TestHexToHash(t *testing.T) {
	h := Hash{0x01, 0x02}
	parsed, err := HexToHash(h.String())
	if err != nil {
		t.Fatalf("HexToHash: %v", err)
	}
	if parsed != h {
		t.Error("round trip mismatch")
	}
	if _, err := HexToHash("0102"); err == nil {
		t.Error("short hex accepted")
	}
}
