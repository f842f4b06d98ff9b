package deck

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/mtgcode/mtgls/internal/model"
)

func card(typeLine string, cmc float64) *model.Card {
	return &model.Card{TypeLine: model.Some(typeLine), CMC: model.Some(cmc)}
}

func TestResolveRecordsPerLineErrors(t *testing.T) {
	known := map[string]*model.Card{
		"Goblin Guide":   card("Creature — Goblin Scout", 1),
		"Lightning Bolt": card("Instant", 1),
	}
	var calls atomic.Int32
	lookup := func(ctx context.Context, name string) (*model.Card, error) {
		calls.Add(1)
		if c, ok := known[name]; ok {
			return c, nil
		}
		return nil, errors.New("not found")
	}

	lines := CardLines("4 Goblin Guide\n4 Lightning Bolt\n2 Nonexistent Card")
	got, err := Resolve(context.Background(), lookup, lines, 2)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 3 || calls.Load() != 3 {
		t.Fatalf("got %d results after %d calls", len(got), calls.Load())
	}
	if got[0].Card != known["Goblin Guide"] || got[2].Err == nil {
		t.Fatalf("unexpected results %#v", got)
	}
	if got[2].Line != 2 {
		t.Fatalf("result order not preserved: %#v", got[2])
	}
}

func TestResolveStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	lookup := func(ctx context.Context, name string) (*model.Card, error) {
		return card("Instant", 1), nil
	}
	if _, err := Resolve(ctx, lookup, CardLines("1 Shock"), 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestComputeStats(t *testing.T) {
	resolved := []Resolved{
		{CardLine: CardLine{Quantity: 4}, Card: card("Creature — Goblin Scout", 1)},
		{CardLine: CardLine{Quantity: 4}, Card: card("Instant", 1)},
		{CardLine: CardLine{Quantity: 2}, Card: card("Sorcery", 3)},
		{CardLine: CardLine{Quantity: 20}, Card: card("Basic Land — Mountain", 0)},
		{CardLine: CardLine{Quantity: 1}, Err: errors.New("not found")},
	}

	s := ComputeStats(resolved)
	if s.Cards != 31 || s.Unresolved != 1 {
		t.Fatalf("Cards = %d, Unresolved = %d", s.Cards, s.Unresolved)
	}
	if want := []int{0, 8, 0, 2}; !reflect.DeepEqual(s.Curve, want) {
		t.Fatalf("Curve = %v, want %v", s.Curve, want)
	}
	if got := s.CurveString(); got != "0 | 8 | 0 | 2" {
		t.Fatalf("CurveString = %q", got)
	}
	if s.MeanManaValue != 1.4 {
		t.Fatalf("MeanManaValue = %v, want 1.4", s.MeanManaValue)
	}
}

func TestComputeStatsOnlyLands(t *testing.T) {
	s := ComputeStats([]Resolved{{CardLine: CardLine{Quantity: 20}, Card: card("Basic Land — Forest", 0)}})
	if s.Curve != nil || s.MeanManaValue != 0 || s.Cards != 20 {
		t.Fatalf("unexpected stats %#v", s)
	}
}

func TestComputeStatsCapsHugeManaValues(t *testing.T) {
	resolved := []Resolved{
		{CardLine: CardLine{Quantity: 1}, Card: card("Creature — Gleemax", 1000000)},
		{CardLine: CardLine{Quantity: 3}, Card: card("Sorcery", 9)},
		{CardLine: CardLine{Quantity: 4}, Card: card("Instant", 1)},
	}

	s := ComputeStats(resolved)
	if want := []int{0, 4, 0, 0, 0, 0, 0, 4}; !reflect.DeepEqual(s.Curve, want) {
		t.Fatalf("Curve = %v, want %v", s.Curve, want)
	}
	if len(s.Curve) != CurveCap+1 {
		t.Fatalf("len(Curve) = %d, want %d", len(s.Curve), CurveCap+1)
	}
	if want := float64(1000000+27+4) / 8; s.MeanManaValue != want {
		t.Fatalf("MeanManaValue = %v, want %v", s.MeanManaValue, want)
	}
}
