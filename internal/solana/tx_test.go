package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
)

// testPubkey returns a deterministic base58 32-byte key.
func testPubkey(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 32))
}

// testSigner wraps an ed25519 key derived from a fixed seed.
type testSigner struct {
	priv ed25519.PrivateKey
}

func newTestSigner(seed byte) *testSigner {
	return &testSigner{priv: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))}
}

func (s *testSigner) Pubkey() string {
	return base58.Encode(s.priv.Public().(ed25519.PublicKey))
}

func (s *testSigner) Sign(message []byte) []byte {
	return ed25519.Sign(s.priv, message)
}

func TestCompileMessage_AccountOrdering(t *testing.T) {
	payer := testPubkey(1)
	writableNonSigner := testPubkey(2)
	readonlyNonSigner := testPubkey(3)
	readonlySigner := testPubkey(4)
	program := testPubkey(5)

	instructions := []Instruction{
		{
			ProgramID: program,
			Accounts: []AccountMeta{
				{Pubkey: readonlyNonSigner},
				{Pubkey: writableNonSigner, IsWritable: true},
				{Pubkey: readonlySigner, IsSigner: true},
			},
			Data: []byte{1, 2, 3},
		},
	}

	msg, err := CompileMessage(payer, testPubkey(9), instructions)
	if err != nil {
		t.Fatalf("CompileMessage: %v", err)
	}

	want := []string{payer, readonlySigner, writableNonSigner, readonlyNonSigner, program}
	if len(msg.AccountKeys) != len(want) {
		t.Fatalf("expected %d accounts, got %d", len(want), len(msg.AccountKeys))
	}
	for i, key := range want {
		if msg.AccountKeys[i] != key {
			t.Errorf("account %d: expected %s, got %s", i, key, msg.AccountKeys[i])
		}
	}

	if msg.Header.NumRequiredSignatures != 2 {
		t.Errorf("expected 2 required signatures, got %d", msg.Header.NumRequiredSignatures)
	}
	if msg.Header.NumReadonlySigned != 1 {
		t.Errorf("expected 1 readonly signed, got %d", msg.Header.NumReadonlySigned)
	}
	if msg.Header.NumReadonlyUnsigned != 2 {
		t.Errorf("expected 2 readonly unsigned, got %d", msg.Header.NumReadonlyUnsigned)
	}
}

func TestCompileMessage_MergesDuplicateAccounts(t *testing.T) {
	payer := testPubkey(1)
	shared := testPubkey(2)
	program := testPubkey(5)

	instructions := []Instruction{
		{
			ProgramID: program,
			Accounts:  []AccountMeta{{Pubkey: shared}},
			Data:      []byte{1},
		},
		{
			ProgramID: program,
			Accounts:  []AccountMeta{{Pubkey: shared, IsWritable: true}},
			Data:      []byte{2},
		},
	}

	msg, err := CompileMessage(payer, testPubkey(9), instructions)
	if err != nil {
		t.Fatalf("CompileMessage: %v", err)
	}

	// Shared account appears once, promoted to writable.
	count := 0
	for _, key := range msg.AccountKeys {
		if key == shared {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected shared account once, got %d times", count)
	}
	if msg.AccountKeys[1] != shared {
		t.Errorf("expected shared account in writable position, got %s", msg.AccountKeys[1])
	}
	if msg.Header.NumReadonlyUnsigned != 1 {
		t.Errorf("expected only program readonly, got %d", msg.Header.NumReadonlyUnsigned)
	}
}

func TestCompileMessage_Errors(t *testing.T) {
	program := testPubkey(5)
	ix := Instruction{ProgramID: program, Data: []byte{1}}

	if _, err := CompileMessage("", testPubkey(9), []Instruction{ix}); err == nil {
		t.Error("expected error for missing fee payer")
	}
	if _, err := CompileMessage(testPubkey(1), "", []Instruction{ix}); err == nil {
		t.Error("expected error for missing blockhash")
	}
	if _, err := CompileMessage(testPubkey(1), testPubkey(9), nil); err == nil {
		t.Error("expected error for no instructions")
	}
	if _, err := CompileMessage(testPubkey(1), testPubkey(9), []Instruction{{Data: []byte{1}}}); err == nil {
		t.Error("expected error for missing program id")
	}
}

func TestMessage_Serialize(t *testing.T) {
	payer := testPubkey(1)
	to := testPubkey(2)

	msg, err := CompileMessage(payer, testPubkey(9), []Instruction{
		NewTransferInstruction(payer, to, 500),
	})
	if err != nil {
		t.Fatalf("CompileMessage: %v", err)
	}

	raw, err := msg.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Header
	if raw[0] != 1 || raw[1] != 0 || raw[2] != 1 {
		t.Errorf("unexpected header bytes: %v", raw[:3])
	}

	// Account table: 3 keys (payer, to, system program)
	if raw[3] != 3 {
		t.Fatalf("expected 3 account keys, got %d", raw[3])
	}
	offset := 4
	if !bytes.Equal(raw[offset:offset+32], bytes.Repeat([]byte{1}, 32)) {
		t.Error("fee payer not first in account table")
	}
	offset += 3 * 32

	// Blockhash
	if !bytes.Equal(raw[offset:offset+32], bytes.Repeat([]byte{9}, 32)) {
		t.Error("blockhash mismatch")
	}
	offset += 32

	// One instruction: program index 2, accounts [0, 1], 12 data bytes
	if raw[offset] != 1 {
		t.Fatalf("expected 1 instruction, got %d", raw[offset])
	}
	offset++
	if raw[offset] != 2 {
		t.Errorf("expected program index 2, got %d", raw[offset])
	}
	offset++
	if raw[offset] != 2 || raw[offset+1] != 0 || raw[offset+2] != 1 {
		t.Errorf("unexpected account indexes: %v", raw[offset:offset+3])
	}
	offset += 3
	if raw[offset] != 12 {
		t.Fatalf("expected 12 data bytes, got %d", raw[offset])
	}
	offset++
	if got := binary.LittleEndian.Uint32(raw[offset : offset+4]); got != 2 {
		t.Errorf("expected transfer index 2, got %d", got)
	}
	if got := binary.LittleEndian.Uint64(raw[offset+4 : offset+12]); got != 500 {
		t.Errorf("expected 500 lamports, got %d", got)
	}
	if offset+12 != len(raw) {
		t.Errorf("trailing bytes after instruction: %d != %d", offset+12, len(raw))
	}
}

func TestAppendShortvecLen(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{16383, []byte{0xff, 0x7f}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}

	for _, tt := range tests {
		got := appendShortvecLen(nil, tt.n)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("appendShortvecLen(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestSignTransaction(t *testing.T) {
	signer := newTestSigner(7)
	payer := signer.Pubkey()
	to := testPubkey(2)

	msg, err := CompileMessage(payer, testPubkey(9), []Instruction{
		NewTransferInstruction(payer, to, 1000),
	})
	if err != nil {
		t.Fatalf("CompileMessage: %v", err)
	}

	tx, err := SignTransaction(msg, signer)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}

	if len(tx.Signatures) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(tx.Signatures))
	}

	msgBytes, _ := msg.Serialize()
	pub := signer.priv.Public().(ed25519.PublicKey)
	if !ed25519.Verify(pub, msgBytes, tx.Signatures[0]) {
		t.Error("signature does not verify against serialized message")
	}

	raw, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if raw[0] != 1 {
		t.Errorf("expected signature count 1, got %d", raw[0])
	}
	if !bytes.Equal(raw[1:65], tx.Signatures[0]) {
		t.Error("signature bytes not at wire offset 1")
	}
	if !bytes.Equal(raw[65:], msgBytes) {
		t.Error("message bytes do not follow signatures")
	}

	if tx.PrimarySignature() != base58.Encode(tx.Signatures[0]) {
		t.Error("primary signature mismatch")
	}

	b58, err := tx.Base58()
	if err != nil {
		t.Fatalf("Base58: %v", err)
	}
	decoded, err := base58.Decode(b58)
	if err != nil {
		t.Fatalf("decode base58 tx: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Error("base58 round trip mismatch")
	}
}

func TestSignTransaction_MissingSigner(t *testing.T) {
	signer := newTestSigner(7)
	other := testPubkey(3)

	msg, err := CompileMessage(signer.Pubkey(), testPubkey(9), []Instruction{
		NewTransferInstruction(other, testPubkey(2), 1000),
	})
	if err != nil {
		t.Fatalf("CompileMessage: %v", err)
	}

	if _, err := SignTransaction(msg, signer); err == nil {
		t.Error("expected error for missing signer")
	}
}

func TestComputeBudgetInstructions(t *testing.T) {
	limit := NewComputeUnitLimitInstruction(600_000)
	if limit.ProgramID != ComputeBudgetProgramID {
		t.Errorf("unexpected program id %s", limit.ProgramID)
	}
	if limit.Data[0] != 2 {
		t.Errorf("expected tag 2, got %d", limit.Data[0])
	}
	if got := binary.LittleEndian.Uint32(limit.Data[1:5]); got != 600_000 {
		t.Errorf("expected 600000 units, got %d", got)
	}

	price := NewComputeUnitPriceInstruction(25_000)
	if price.Data[0] != 3 {
		t.Errorf("expected tag 3, got %d", price.Data[0])
	}
	if got := binary.LittleEndian.Uint64(price.Data[1:9]); got != 25_000 {
		t.Errorf("expected 25000 micro-lamports, got %d", got)
	}
}
