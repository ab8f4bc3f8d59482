package skipgraph

import (
	"crypto/sha256"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	cm "github.com/mosaicnetworks/skipgraph/src/common"
)

func newTestEngine(t *testing.T, levels int, ids ...Identity) *Engine {
	e, err := NewEngine(levels, NewInmemStore(), cm.NewTestEntry(t, "engine"))
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if err := e.Insert(id); err != nil {
			t.Fatal(err)
		}
	}
	return e
}

func randomName(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0' + byte(r.Intn(2))
	}
	return string(b)
}

func randomPopulation(r *rand.Rand, size int, levels int) []Identity {
	seen := map[int64]bool{}
	ids := []Identity{}
	for len(ids) < size {
		num := r.Int63n(int64(size * 10))
		if seen[num] {
			continue
		}
		seen[num] = true
		ids = append(ids, NewIdentity(num, randomName(r, levels), "127.0.0.1", 7000+len(ids)))
	}
	return ids
}

func TestEngineScenario(t *testing.T) {
	e := newTestEngine(t, 5,
		NewIdentity(1, "011", "127.0.0.1", 7001),
		NewIdentity(2, "001", "127.0.0.1", 7000),
		NewIdentity(3, "100", "127.0.0.1", 7002),
	)

	n, err := e.SearchByNumID(2)
	if err != nil {
		t.Fatal(err)
	}
	if n.NameID != "001" {
		t.Fatalf("SearchByNumID(2) should return the 001 node, not %v", n)
	}

	n, err = e.SearchByNameID("000")
	if err != nil {
		t.Fatal(err)
	}
	if n.NumID != 2 {
		t.Fatalf("SearchByNameID(000) should return 2, not %v", n)
	}

	// 1(011) and 2(001) share one bit, 3(100) shares none
	t1, _ := e.Table(1)
	if r, _ := t1.Right(1); r == nil || r.NumID != 2 {
		t.Fatalf("1.right(1) should be 2, not %v", r)
	}
	if r, _ := t1.Right(2); r != nil {
		t.Fatalf("1.right(2) should be absent, not %v", r)
	}
	t2, _ := e.Table(2)
	if r, _ := t2.Right(0); r == nil || r.NumID != 3 {
		t.Fatalf("2.right(0) should be 3, not %v", r)
	}
	if r, _ := t2.Right(1); r != nil {
		t.Fatalf("2.right(1) should be absent, not %v", r)
	}

	if err := CheckInvariants(e.Identities(), e.Tables()); err != nil {
		t.Fatal(err)
	}
}

func TestEngineErrors(t *testing.T) {
	e := newTestEngine(t, 3)

	if _, err := e.SearchByNumID(1); !cm.Is(err, cm.NotFound) {
		t.Fatalf("empty engine should report NotFound, not %v", err)
	}
	if _, err := e.SearchByNameID("010"); !cm.Is(err, cm.NotFound) {
		t.Fatalf("empty engine should report NotFound, not %v", err)
	}
	if got := e.GetNodesWithNameID("010"); len(got) != 0 {
		t.Fatalf("empty engine should have no nodes, not %v", got)
	}

	if err := e.Insert(NewIdentity(1, "010", "", 0)); err != nil {
		t.Fatal(err)
	}
	if err := e.Insert(NewIdentity(1, "110", "", 0)); !cm.Is(err, cm.DuplicateID) {
		t.Fatalf("expected DuplicateID, not %v", err)
	}
	if err := e.Insert(NewIdentity(2, "01x", "", 0)); !cm.Is(err, cm.InvalidNameID) {
		t.Fatalf("expected InvalidNameID, not %v", err)
	}
	if err := e.Insert(NewIdentity(2, "0101", "", 0)); !cm.Is(err, cm.InvalidNameID) {
		t.Fatalf("expected InvalidNameID for a name longer than L, not %v", err)
	}
	if err := e.Delete(2); !cm.Is(err, cm.NotFound) {
		t.Fatalf("expected NotFound, not %v", err)
	}
	if _, err := e.Table(2); !cm.Is(err, cm.NotFound) {
		t.Fatalf("expected NotFound, not %v", err)
	}
	if _, err := e.SearchByNumIDFrom(2, 1); !cm.Is(err, cm.NotFound) {
		t.Fatalf("unknown entry node should be NotFound, not %v", err)
	}
	if _, err := NewEngine(-1, nil, nil); !cm.Is(err, cm.OutOfRange) {
		t.Fatalf("negative levels should be OutOfRange, not %v", err)
	}
}

func TestEngineInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, size := range []int{1, 2, 10, 64, 200} {
		for _, levels := range []int{1, 4, 8} {
			e := newTestEngine(t, levels, randomPopulation(r, size, levels)...)
			if err := CheckInvariants(e.Identities(), e.Tables()); err != nil {
				t.Fatalf("size %d, levels %d: %v", size, levels, err)
			}
		}
	}
}

func TestEngineRebuildEquivalence(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	ids := randomPopulation(r, 100, 6)
	e := newTestEngine(t, 6, ids...)

	// shuffled insertions must end up with the same tables as one build over
	// the sorted population
	expected := buildTables(e.Identities(), 6)
	if !reflect.DeepEqual(expected, e.Tables()) {
		t.Fatalf("incremental inserts differ from a full build")
	}
}

func TestEngineInsertDeleteClosure(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	e := newTestEngine(t, 5, randomPopulation(r, 50, 5)...)

	before := e.Tables()

	x := NewIdentity(1000, "10101", "127.0.0.1", 9000)
	if err := e.Insert(x); err != nil {
		t.Fatal(err)
	}
	if err := e.Delete(x.NumID); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(before, e.Tables()) {
		t.Fatalf("insert then delete should restore the tables")
	}
}

func TestEngineNoDanglingReferences(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	ids := randomPopulation(r, 40, 4)
	e := newTestEngine(t, 4, ids...)

	for _, victim := range ids[:20] {
		if err := e.Delete(victim.NumID); err != nil {
			t.Fatal(err)
		}
		for owner, table := range e.Tables() {
			if table.References(victim.NumID) {
				t.Fatalf("%d still references deleted %d", owner, victim.NumID)
			}
		}
	}

	if err := CheckInvariants(e.Identities(), e.Tables()); err != nil {
		t.Fatal(err)
	}
}

func TestEngineChainedInsertions(t *testing.T) {
	levels := 8
	e := newTestEngine(t, levels)

	prev := NewIdentity(0, NameIDFromBytes(nil, levels), "127.0.0.1", 7000)
	if err := e.Insert(prev); err != nil {
		t.Fatal(err)
	}

	for i := 1; i < 100; i++ {
		latest, ok := e.LatestInsertion()
		if !ok || latest.NumID != prev.NumID {
			t.Fatalf("latest insertion should be %d, not %v", prev.NumID, latest)
		}

		data, err := latest.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		hash := sha256.Sum256(data)

		next := NewIdentity(int64(i), NameIDFromBytes(hash[:], levels), "127.0.0.1", 7000)
		if err := e.Insert(next); err != nil {
			t.Fatal(err)
		}
		prev = next
	}

	for i := 0; i < 100; i += 2 {
		if err := e.Delete(int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	if e.Size() != 50 {
		t.Fatalf("50 identities should remain, not %d", e.Size())
	}
	if err := CheckInvariants(e.Identities(), e.Tables()); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < 100; i += 2 {
		if _, err := e.SearchByNumID(int64(i)); err != nil {
			t.Fatalf("%d should still be found: %v", i, err)
		}
	}
}

func TestEngineSearchByNumIDFromAnyStart(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	ids := randomPopulation(r, 80, 6)
	e := newTestEngine(t, 6, ids...)

	present := map[int64]bool{}
	for _, id := range ids {
		present[id.NumID] = true
	}

	for _, start := range ids {
		for target := int64(-1); target <= 800; target += 7 {
			n, err := e.SearchByNumIDFrom(start.NumID, target)
			if present[target] {
				if err != nil || n.NumID != target {
					t.Fatalf("from %d, %d should be found, got %v %v", start.NumID, target, n, err)
				}
			} else if !cm.Is(err, cm.NotFound) {
				t.Fatalf("from %d, %d should be NotFound, got %v %v", start.NumID, target, n, err)
			}
		}
	}
}

func TestEngineSearchByNameID(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	levels := 6
	ids := randomPopulation(r, 60, levels)
	e := newTestEngine(t, levels, ids...)
	sorted := e.Identities()

	for i := 0; i < 200; i++ {
		target := randomName(r, levels)

		got, err := e.SearchByNameID(target)
		if err != nil {
			t.Fatal(err)
		}

		best := -1
		var expected Identity
		for _, id := range sorted {
			if cb := CommonBits(id.NameID, target); cb > best {
				best = cb
				expected = id
			}
		}

		if got != expected {
			t.Fatalf("SearchByNameID(%s) should return %v, not %v", target, expected, got)
		}
	}
}

func TestEngineGetNodesWithNameID(t *testing.T) {
	e := newTestEngine(t, 3,
		NewIdentity(9, "010", "", 0),
		NewIdentity(2, "010", "", 0),
		NewIdentity(5, "011", "", 0),
		NewIdentity(1, "01", "", 0),
		NewIdentity(7, "010", "", 0),
	)

	got := e.GetNodesWithNameID("010")
	nums := []int64{}
	for _, n := range got {
		nums = append(nums, n.NumID)
	}
	if !reflect.DeepEqual(nums, []int64{2, 7, 9}) {
		t.Fatalf("GetNodesWithNameID(010) should return [2 7 9], not %v", nums)
	}

	got = e.GetNodesWithNameID("01")
	if len(got) != 1 || got[0].NumID != 1 {
		t.Fatalf("GetNodesWithNameID(01) should return [1], not %v", got)
	}

	if got := e.GetNodesWithNameID("111"); len(got) != 0 {
		t.Fatalf("GetNodesWithNameID(111) should be empty, not %v", got)
	}
	if got := e.GetNodesWithNameID("0100"); len(got) != 0 {
		t.Fatalf("names longer than L never match, got %v", got)
	}
}

func TestEngineBootstrapFromStore(t *testing.T) {
	store := NewInmemStore()
	e, err := NewEngine(4, store, cm.NewTestEntry(t, "engine"))
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []Identity{
		NewIdentity(3, "0011", "", 0),
		NewIdentity(1, "0110", "", 0),
		NewIdentity(2, "1111", "", 0),
	} {
		if err := e.Insert(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Delete(1); err != nil {
		t.Fatal(err)
	}

	e2, err := NewEngine(4, store, cm.NewTestEntry(t, "engine2"))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(e.Identities(), e2.Identities()) {
		t.Fatalf("bootstrapped population differs: %v %v", e.Identities(), e2.Identities())
	}
	if !reflect.DeepEqual(e.Tables(), e2.Tables()) {
		t.Fatalf("bootstrapped tables differ")
	}
	latest, ok := e2.LatestInsertion()
	if !ok || latest.NumID != 2 {
		t.Fatalf("latest insertion should be 2, not %v", latest)
	}
}

func TestEngineConcurrentAccess(t *testing.T) {
	const (
		workers = 8
		rounds  = 200
		levels  = 6
	)

	e := newTestEngine(t, levels)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w)))
			// each worker owns a disjoint range of numeric ids
			base := int64(w * 1000)
			live := []int64{}

			for i := 0; i < rounds; i++ {
				switch r.Intn(5) {
				case 0, 1:
					num := base + int64(i)
					if err := e.Insert(NewIdentity(num, randomName(r, r.Intn(levels+1)), "127.0.0.1", 7000)); err != nil {
						t.Errorf("insert %d: %v", num, err)
						return
					}
					live = append(live, num)
				case 2:
					if len(live) == 0 {
						continue
					}
					k := r.Intn(len(live))
					if err := e.Delete(live[k]); err != nil {
						t.Errorf("delete %d: %v", live[k], err)
						return
					}
					live = append(live[:k], live[k+1:]...)
				case 3:
					if len(live) == 0 {
						continue
					}
					num := live[r.Intn(len(live))]
					got, err := e.SearchByNumID(num)
					if err != nil || got.NumID != num {
						t.Errorf("search %d: got %v, %v", num, got, err)
						return
					}
				case 4:
					name := randomName(r, levels)
					if _, err := e.SearchByNameID(name); err != nil && !cm.Is(err, cm.NotFound) {
						t.Errorf("name search %s: %v", name, err)
						return
					}
					for _, id := range e.GetNodesWithNameID(name) {
						if id.NameID != name {
							t.Errorf("GetNodesWithNameID(%s) returned %v", name, id)
							return
						}
					}
				}
			}
		}(w)
	}
	wg.Wait()

	if err := CheckInvariants(e.Identities(), e.Tables()); err != nil {
		t.Fatal(err)
	}
}
