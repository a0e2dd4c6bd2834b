package mib

import (
	"errors"
	"testing"
	"time"

	"github.com/geekxflood/gosnmpd/internal/oid"
)

func TestPluginMaterialiseScalar(t *testing.T) {
	calls := 0
	p := NewPlugin("1.2.3", func(string) (any, error) {
		calls++
		return 42, nil
	}, nil)

	root := &Node{}
	if err := root.Place(oid.MustParse("1.2.3"), PluginChild(p)); err != nil {
		t.Fatal(err)
	}

	res, err := root.Lookup(oid.MustParse("1.2.3"), "public")
	if err != nil || res.Kind != ResultScalar || res.Scalar != 42 {
		t.Fatalf("Lookup = %+v, %v", res, err)
	}
	res, err = root.Lookup(oid.MustParse("1.2.3.4"), "public")
	if err != nil || res.Kind != ResultAbsent {
		t.Fatalf("Lookup(1.2.3.4) = %+v, %v, want absent", res, err)
	}
	if calls != 2 {
		t.Errorf("producer invoked %d times, want 2 (no TTL means re-invoke each call)", calls)
	}
}

func TestPluginProducerErrorIsAbsent(t *testing.T) {
	calls := 0
	p := NewPlugin("1.2.3", func(string) (any, error) {
		calls++
		return nil, errors.New("boom")
	}, nil)
	root := &Node{}
	_ = root.Place(oid.MustParse("1.2.3"), PluginChild(p))

	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fakeNow }

	res, err := root.Lookup(oid.MustParse("1.2.3"), "public")
	if err != nil || res.Kind != ResultAbsent {
		t.Fatalf("Lookup = %+v, %v, want absent (no propagated error)", res, err)
	}

	// A second lookup within the same cache window must not re-invoke the
	// failing producer: the error is cached as absent for the window.
	res, err = root.Lookup(oid.MustParse("1.2.3"), "public")
	if err != nil || res.Kind != ResultAbsent {
		t.Fatalf("Lookup (2nd) = %+v, %v, want absent", res, err)
	}
	if calls != 1 {
		t.Fatalf("producer invoked %d times within the error cache window, want 1", calls)
	}

	// Once the window elapses, the producer is retried.
	fakeNow = fakeNow.Add(errorCacheWindow + time.Second)
	res, err = root.Lookup(oid.MustParse("1.2.3"), "public")
	if err != nil || res.Kind != ResultAbsent {
		t.Fatalf("Lookup (after window) = %+v, %v, want absent", res, err)
	}
	if calls != 2 {
		t.Fatalf("producer invoked %d times after the error cache window elapsed, want 2", calls)
	}
}

func TestPluginProducerPanicIsAbsent(t *testing.T) {
	p := NewPlugin("1.2.3", func(string) (any, error) {
		panic("producer exploded")
	}, nil)
	root := &Node{}
	_ = root.Place(oid.MustParse("1.2.3"), PluginChild(p))

	res, err := root.Lookup(oid.MustParse("1.2.3"), "public")
	if err != nil || res.Kind != ResultAbsent {
		t.Fatalf("Lookup = %+v, %v, want absent", res, err)
	}
}

func TestPluginCacheWindow(t *testing.T) {
	calls := 0
	p := NewPlugin("1.2.3", func(string) (any, error) {
		calls++
		return Cache{TTL: 60, Value: calls}, nil
	}, nil)

	fakeNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fakeNow }

	root := &Node{}
	_ = root.Place(oid.MustParse("1.2.3"), PluginChild(p))

	res1, _ := root.Lookup(oid.MustParse("1.2.3"), "public")
	res2, _ := root.Lookup(oid.MustParse("1.2.3"), "public")
	if res1.Scalar != res2.Scalar {
		t.Fatalf("expected cached value to repeat: %v vs %v", res1.Scalar, res2.Scalar)
	}
	if calls != 1 {
		t.Fatalf("producer invoked %d times within cache window, want 1", calls)
	}

	fakeNow = fakeNow.Add(61 * time.Second)
	res3, _ := root.Lookup(oid.MustParse("1.2.3"), "public")
	if res3.Scalar == res1.Scalar {
		t.Fatalf("expected producer to be re-invoked after TTL expiry")
	}
	if calls != 2 {
		t.Fatalf("producer invoked %d times after expiry, want 2", calls)
	}
}

func TestPluginCommunityPassthrough(t *testing.T) {
	p := NewPlugin("1.2.3", func(community string) (any, error) {
		return community, nil
	}, nil)
	root := &Node{}
	_ = root.Place(oid.MustParse("1.2.3"), PluginChild(p))

	res, err := root.Lookup(oid.MustParse("1.2.3"), "public")
	if err != nil || res.Scalar != "public" {
		t.Fatalf("Lookup = %+v, %v, want scalar \"public\"", res, err)
	}
}

func TestCoerceSequence(t *testing.T) {
	p := NewPlugin("3.2.1", func(string) (any, error) {
		return []any{1, 1, 2, 3, 5, 8, 13}, nil
	}, nil)
	root := &Node{}
	_ = root.Place(oid.MustParse("3.2.1"), PluginChild(p))

	res, err := root.Lookup(oid.MustParse("3.2.1.0"), "public")
	if err != nil || res.Scalar != 1 {
		t.Fatalf("Lookup(3.2.1.0) = %+v, %v", res, err)
	}
	next, ok := root.Successor(oid.MustParse("3.2.1.4"), "public")
	if !ok || next.String() != "3.2.1.5" {
		t.Fatalf("Successor(3.2.1.4) = %v, %v, want 3.2.1.5", next, ok)
	}
	_, ok = root.Successor(oid.MustParse("3.2.1.6"), "public")
	if ok {
		t.Fatalf("expected EndOfMibView past the last sequence element")
	}
}

func TestCoerceMappingWithEmptyBranchSkipped(t *testing.T) {
	p := NewPlugin("27068.2.2.7", func(string) (any, error) {
		return map[uint32]any{
			0: []any{1, 2, 3},
			1: []any{},
			2: []any{4},
		}, nil
	}, nil)
	root := &Node{}
	_ = root.Place(oid.MustParse("27068.2.2.7"), PluginChild(p))

	next, ok := root.Successor(oid.MustParse("27068.2.2.7.0.2"), "public")
	if !ok {
		t.Fatalf("expected a successor past the non-empty branch")
	}
	if next.HasPrefix(oid.MustParse("27068.2.2.7.1")) {
		t.Fatalf("successor %s should skip the empty branch 27068.2.2.7.1", next)
	}
}

func TestCoerceNegativeMapKeyIsBadShape(t *testing.T) {
	_, err := Coerce(map[int]any{-1: "bad"})
	if err != ErrBadPluginShape {
		t.Fatalf("Coerce negative key = %v, want ErrBadPluginShape", err)
	}
}

func TestCoerceNilChildSlotIsAbsent(t *testing.T) {
	child, err := Coerce([]any{1, nil, 3})
	if err != nil {
		t.Fatal(err)
	}
	if child.Kind != KindSubtree {
		t.Fatalf("expected a subtree, got kind %v", child.Kind)
	}
	if _, ok := child.Subtree.getChild(1); ok {
		t.Errorf("nil child slot should be absent, not present")
	}
}
