package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/voxtask/voxtask/internal/domain/task"
)

// fuzzyThreshold is the minimum bigram similarity for a fallback hit.
const fuzzyThreshold = 0.3

// fuzzyCandidatePool caps how many tasks are scored when falling back.
const fuzzyCandidatePool = 200

func (r *Registry) searchTasks(ctx context.Context, input json.RawMessage) (Result, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, errors.New("query is required")
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}

	// Keyword hits rank first, always.
	hits, err := r.store.SearchTasks(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	if len(hits) >= in.Limit {
		return Result{"tasks": hits, "count": len(hits)}, nil
	}

	// Keyword hits are scarce: extend with approximate matches over a
	// bounded candidate pool.
	candidates, err := r.store.ListTasks(ctx, task.Filter{Limit: fuzzyCandidatePool})
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(hits))
	for _, t := range hits {
		seen[t.ID] = true
	}

	type scored struct {
		t     task.Task
		score float64
	}
	var fuzzy []scored
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		score := bigramSimilarity(in.Query, c.Title)
		if s := bigramSimilarity(in.Query, c.Description); s > score {
			score = s
		}
		if s := bigramSimilarity(in.Query, c.Notes); s > score {
			score = s
		}
		if score >= fuzzyThreshold {
			fuzzy = append(fuzzy, scored{t: c, score: score})
		}
	}
	sort.SliceStable(fuzzy, func(i, j int) bool { return fuzzy[i].score > fuzzy[j].score })

	results := hits
	for _, f := range fuzzy {
		if len(results) >= in.Limit {
			break
		}
		results = append(results, f.t)
	}
	return Result{"tasks": results, "count": len(results)}, nil
}

// bigramSimilarity computes the Sørensen–Dice coefficient over character
// bigrams of the lowercased inputs. 1 means identical bigram sets, 0 no
// overlap.
func bigramSimilarity(a, b string) float64 {
	ab := bigrams(strings.ToLower(a))
	bb := bigrams(strings.ToLower(b))
	if len(ab) == 0 || len(bb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ab))
	for _, g := range ab {
		counts[g]++
	}
	overlap := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(ab)+len(bb))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
