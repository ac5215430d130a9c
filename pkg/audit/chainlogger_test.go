package audit

import "testing"

func TestChainLogger(t *testing.T) {
	logger := NewChainLogger()

	e1 := logger.Append("action: add_stock, amount: 100")
	e2 := logger.Append("action: sell_stock, amount: 30")
	e3 := logger.Append("action: reset_ledger")

	if e1.Seq != 0 || e2.Seq != 1 || e3.Seq != 2 {
		t.Errorf("unexpected sequence numbers: %d %d %d", e1.Seq, e2.Seq, e3.Seq)
	}

	if !logger.Verify() {
		t.Error("Verify failed for valid chain")
	}

	chain := logger.Entries()
	if !VerifyChain(chain) {
		t.Error("VerifyChain failed for valid chain")
	}

	// Tamper with a payload
	originalPayload := chain[1].Payload
	chain[1].Payload = "action: sell_stock, amount: 3000"
	if VerifyChain(chain) {
		t.Error("VerifyChain succeeded for tampered payload")
	}

	// Restore payload, tamper with a hash
	chain[1].Payload = originalPayload
	originalHash := chain[1].Hash
	chain[1].Hash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	if VerifyChain(chain) {
		t.Error("VerifyChain succeeded for tampered hash")
	}

	// Restore hash, break a link
	chain[1].Hash = originalHash
	chain[2].PreviousHash = "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"
	if VerifyChain(chain) {
		t.Error("VerifyChain succeeded for broken link")
	}
}

func TestVerifyChainEmpty(t *testing.T) {
	if !VerifyChain(nil) {
		t.Error("VerifyChain failed for empty chain")
	}
}
