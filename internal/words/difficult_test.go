package words

import (
	"math/rand/v2"
	"testing"

	"github.com/abhisek/smartrepeat/internal/stage"
)

func TestDifficultSet_MissedTwiceKeepsFirstSource(t *testing.T) {
	d := NewDifficultSet()
	apple := Word{Word: "apple", Translation: "manzana"}

	if !d.Record(apple, stage.Quiz) {
		t.Fatal("first record should be new")
	}
	if d.Record(Word{Word: "Apple"}, stage.KnowDontKnow) {
		t.Fatal("second record of the same key should be a no-op")
	}

	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1", d.Len())
	}
	src, ok := d.Source("apple")
	if !ok || src != stage.Quiz {
		t.Errorf("Source = %v, %v; want quiz", src, ok)
	}
	if got := d.All()[0].Translation; got != "manzana" {
		t.Errorf("kept translation %q, want the first recorded word", got)
	}
}

func TestDifficultSet_RandomEventsStayUnique(t *testing.T) {
	vocab := []string{"apple", "pear", "plum", "fig", "kiwi", "lime"}
	rng := rand.New(rand.NewPCG(7, 11))
	sources := []stage.Stage{stage.Quiz, stage.KnowDontKnow}

	for round := 0; round < 100; round++ {
		d := NewDifficultSet()
		first := map[string]stage.Stage{}
		for i := 0; i < 30; i++ {
			w := vocab[rng.IntN(len(vocab))]
			src := sources[rng.IntN(len(sources))]
			d.Record(Word{Word: w}, src)
			if _, ok := first[w]; !ok {
				first[w] = src
			}
		}
		keys := Keys(d.All())
		if len(KeySet(d.All())) != len(keys) {
			t.Fatalf("round %d: duplicate keys %v", round, keys)
		}
		if len(keys) != len(first) {
			t.Fatalf("round %d: %d keys, want %d", round, len(keys), len(first))
		}
		for w, src := range first {
			if got, _ := d.Source(w); got != src {
				t.Fatalf("round %d: source(%s) = %v, want %v", round, w, got, src)
			}
		}
	}
}

func TestDifficultSet_ResetAndClone(t *testing.T) {
	d := NewDifficultSet()
	d.RecordAll([]Word{{Word: "a"}, {Word: "b"}, {Word: "a"}}, stage.Quiz)
	if d.Len() != 2 {
		t.Fatalf("Len = %d, want 2", d.Len())
	}

	c := d.Clone()
	d.Reset()
	if d.Len() != 0 || d.Contains("a") {
		t.Error("reset did not clear the set")
	}
	if c.Len() != 2 || !c.Contains("b") {
		t.Error("clone should be independent of reset")
	}
	if !d.Record(Word{Word: "a"}, stage.KnowDontKnow) {
		t.Error("record after reset should be new")
	}
}

func TestDifficultSet_IgnoresBlankWords(t *testing.T) {
	d := NewDifficultSet()
	if d.Record(Word{Word: "   "}, stage.Quiz) {
		t.Error("blank word should not be recorded")
	}
}
