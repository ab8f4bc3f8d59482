package skipgraph

import (
	"testing"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

func TestLookupTableOutOfRange(t *testing.T) {
	table := NewLookupTable(3)

	if table.Levels() != 3 {
		t.Fatalf("Levels should be 3, not %d", table.Levels())
	}

	for _, level := range []int{-1, 4, 100} {
		if _, err := table.Left(level); !cm.Is(err, cm.OutOfRange) {
			t.Fatalf("Left(%d) should fail with OutOfRange, not %v", level, err)
		}
		if _, err := table.Right(level); !cm.Is(err, cm.OutOfRange) {
			t.Fatalf("Right(%d) should fail with OutOfRange, not %v", level, err)
		}
		if err := table.SetLeft(level, nil); !cm.Is(err, cm.OutOfRange) {
			t.Fatalf("SetLeft(%d) should fail with OutOfRange, not %v", level, err)
		}
		if err := table.SetRight(level, nil); !cm.Is(err, cm.OutOfRange) {
			t.Fatalf("SetRight(%d) should fail with OutOfRange, not %v", level, err)
		}
	}
}

func TestLookupTableSetGet(t *testing.T) {
	table := NewLookupTable(2)
	a := NewIdentity(1, "01", "10.0.0.1", 80)
	b := NewIdentity(2, "00", "10.0.0.2", 80)

	for level := 0; level <= 2; level++ {
		if l, _ := table.Left(level); l != nil {
			t.Fatalf("new table should be empty at level %d", level)
		}
	}

	if err := table.SetRight(1, &a); err != nil {
		t.Fatal(err)
	}
	if err := table.SetLeft(2, &b); err != nil {
		t.Fatal(err)
	}

	// the table holds copies
	a.NameID = "11"

	r, _ := table.Right(1)
	if r == nil || r.NumID != 1 || r.NameID != "01" {
		t.Fatalf("Right(1) should be 1(01), not %v", r)
	}
	l, _ := table.Left(2)
	if l == nil || l.NumID != 2 {
		t.Fatalf("Left(2) should be 2, not %v", l)
	}

	if !table.References(2) || table.References(3) {
		t.Fatalf("References is wrong")
	}

	if err := table.SetRight(1, nil); err != nil {
		t.Fatal(err)
	}
	if r, _ := table.Right(1); r != nil {
		t.Fatalf("Right(1) should have been cleared")
	}
}

func TestLookupTableEntries(t *testing.T) {
	table := NewLookupTable(1)
	a := NewIdentity(1, "0", "", 0)
	table.SetRight(0, &a)

	left, right := table.Entries()
	rebuilt := LookupTableFromEntries(left, right)

	if rebuilt.Levels() != 1 {
		t.Fatalf("rebuilt table should have 1 level, not %d", rebuilt.Levels())
	}
	if r, _ := rebuilt.Right(0); r == nil || r.NumID != 1 {
		t.Fatalf("rebuilt Right(0) should be 1, not %v", r)
	}

	if LookupTableFromEntries(nil, nil).Levels() != 0 {
		t.Fatalf("empty entries should give a single level table")
	}
}
