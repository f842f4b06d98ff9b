package deck

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mtgcode/mtgls/internal/model"
)

// Lookup resolves a card name to its record.
type Lookup func(ctx context.Context, name string) (*model.Card, error)

// Resolved pairs a card line with its lookup outcome.
type Resolved struct {
	CardLine
	Card *model.Card
	Err  error
}

// Resolve looks up every card line concurrently, at most limit at a time
// (limit <= 0 means unbounded). Per-line lookup failures are recorded on the
// result; only cancellation of ctx fails the call.
func Resolve(ctx context.Context, lookup Lookup, lines []CardLine, limit int) ([]Resolved, error) {
	out := make([]Resolved, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, cl := range lines {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			card, err := lookup(gctx, cl.Name)
			out[i] = Resolved{CardLine: cl, Card: card, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CurveCap is the last curve bucket; it counts every mana value at or above it.
const CurveCap = 7

// Stats summarizes a resolved deck.
type Stats struct {
	Cards         int     `json:"cards"`
	Unresolved    int     `json:"unresolved"`
	Curve         []int   `json:"curve"` // quantity per mana value, lands excluded
	MeanManaValue float64 `json:"mean_mana_value"`
}

// ComputeStats tallies quantities and the mana curve. Lines that failed to
// resolve still count toward Cards. The curve never extends past CurveCap;
// the mean uses the uncapped mana values.
func ComputeStats(resolved []Resolved) Stats {
	var s Stats
	var curve [CurveCap + 1]int
	top := -1
	total, weighted := 0, 0
	for _, r := range resolved {
		s.Cards += r.Quantity
		if r.Err != nil || r.Card == nil {
			s.Unresolved += r.Quantity
			continue
		}
		if r.Card.IsLand() {
			continue
		}
		mv, ok := r.Card.ManaValue()
		if !ok {
			continue
		}
		bucket := min(mv, CurveCap)
		curve[bucket] += r.Quantity
		top = max(top, bucket)
		total += r.Quantity
		weighted += mv * r.Quantity
	}
	if top < 0 {
		return s
	}
	s.Curve = append([]int(nil), curve[:top+1]...)
	s.MeanManaValue = float64(weighted) / float64(total)
	return s
}

// CurveString renders the curve as "0 | 4 | 8". A full curve's last entry
// is the CurveCap-or-more bucket.
func (s Stats) CurveString() string {
	parts := make([]string, len(s.Curve))
	for i, n := range s.Curve {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " | ")
}
