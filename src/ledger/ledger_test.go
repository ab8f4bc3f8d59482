package ledger

import (
	"bytes"
	"fmt"
	"testing"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
	"github.com/mosaicnetworks/skipgraph/src/skipgraph"
)

const testLevels = 8

func newTestLedger(t *testing.T) *Ledger {
	engine, err := skipgraph.NewEngine(testLevels, nil, cm.NewTestEntry(t, "engine"))
	if err != nil {
		t.Fatal(err)
	}
	owner := skipgraph.NewIdentity(0, "", "10.0.0.1", 1337)
	return NewLedger(engine, owner, cm.NewTestEntry(t, "ledger"))
}

func TestLedgerChain(t *testing.T) {
	l := newTestLedger(t)

	var blocks []*Block
	for i := 0; i < 100; i++ {
		b, err := l.Append([]byte(fmt.Sprintf("block %d", i)))
		if err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, b)
	}

	if !bytes.Equal(blocks[0].PrevHash, GenesisHash) {
		t.Fatalf("first block should chain on the genesis hash")
	}

	for i := 1; i < len(blocks); i++ {
		if blocks[i].Index != int64(i) {
			t.Fatalf("block %d has index %d", i, blocks[i].Index)
		}
		prev, err := blocks[i-1].Hash()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(blocks[i].PrevHash, prev) {
			t.Fatalf("block %d does not chain on block %d", i, i-1)
		}
		if blocks[i].Identity(testLevels).NameID != skipgraph.NameIDFromBytes(prev, testLevels) {
			t.Fatalf("block %d name id does not derive from the previous hash", i)
		}
	}

	// Prune every other block.
	for i := 0; i < 100; i += 2 {
		if err := l.Prune(int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	if l.graph.Size() != 50 {
		t.Fatalf("expected 50 blocks, got %d", l.graph.Size())
	}

	if err := skipgraph.CheckInvariants(l.graph.Identities(), l.graph.Tables()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		_, err := l.Block(int64(i))
		if i%2 == 0 && !cm.Is(err, cm.NotFound) {
			t.Fatalf("pruned block %d should be NotFound, got %v", i, err)
		}
		if i%2 == 1 && err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
	}

	// The chain continues after the last block, pruned or not.
	next, err := l.Append([]byte("next"))
	if err != nil {
		t.Fatal(err)
	}
	last, _ := blocks[99].Hash()
	if next.Index != 100 || !bytes.Equal(next.PrevHash, last) {
		t.Fatalf("bad continuation %d", next.Index)
	}
}

func TestLedgerPrunedTip(t *testing.T) {
	l := newTestLedger(t)

	var blocks []*Block
	for i := 0; i < 3; i++ {
		b, err := l.Append([]byte{byte(i)})
		if err != nil {
			t.Fatal(err)
		}
		blocks = append(blocks, b)
	}

	if err := l.Prune(2); err != nil {
		t.Fatal(err)
	}

	next, err := l.Append([]byte("after prune"))
	if err != nil {
		t.Fatal(err)
	}
	tip, _ := blocks[2].Hash()
	if next.Index != 3 || !bytes.Equal(next.PrevHash, tip) {
		t.Fatalf("chain should continue from the pruned tip, got index %d", next.Index)
	}
}

func TestLedgerForeignHead(t *testing.T) {
	l := newTestLedger(t)

	for i := 0; i < 2; i++ {
		if _, err := l.Append([]byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	// Another writer replaces block 1 in the graph.
	if err := l.graph.Delete(1); err != nil {
		t.Fatal(err)
	}
	if err := l.graph.Insert(skipgraph.NewIdentity(1, "1111", "10.0.0.2", 4000)); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Append([]byte("next")); !cm.Is(err, cm.NotFound) {
		t.Fatalf("appending after a foreign head should fail with NotFound, got %v", err)
	}
}

func TestLedgerSuccessors(t *testing.T) {
	l := newTestLedger(t)

	for i := 0; i < 10; i++ {
		if _, err := l.Append([]byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	for i := int64(0); i < 9; i++ {
		succ, err := l.Successors(i)
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, b := range succ {
			if b.Index == i+1 {
				found = true
			}
		}
		if !found {
			t.Fatalf("block %d should be a successor of %d", i+1, i)
		}
	}

	if _, err := l.Successors(42); !cm.Is(err, cm.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestBlockMarshal(t *testing.T) {
	b := NewBlock(7, []byte{1, 2, 3}, skipgraph.NewIdentity(1, "01", "10.0.0.1", 1337), []byte("payload"))

	data, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var out Block
	if err := out.Unmarshal(data); err != nil {
		t.Fatal(err)
	}

	h1, _ := b.Hash()
	h2, _ := out.Hash()
	if !bytes.Equal(h1, h2) {
		t.Fatalf("hash changed through marshalling: %x %x", h1, h2)
	}
	if b.Hex() != cm.EncodeToString(h1) {
		t.Fatalf("bad hex %s", b.Hex())
	}
}
