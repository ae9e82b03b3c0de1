package pipeline

import (
	"context"
	"slices"
	"sync"

	"github.com/dgallion1/projpack/internal/token"
)

// Transform converts one asset token. A returned error means "keep the
// original".
type Transform = func(ctx context.Context, tok token.Token) (token.Token, error)

// WorkerFunc builds the transform owned by one pool worker, so per-worker
// state such as codec sessions is never shared.
type WorkerFunc = func(worker int) Transform

// Dispatch transforms every asset token exactly once on a pool of workers
// goroutines and returns all tokens sorted by Index. Literal tokens are not
// transformed. A transform that fails or panics leaves its token as it
// was. onAsset, if set, is called from the calling goroutine with the
// running count of finished asset tokens.
func Dispatch(ctx context.Context, tokens []token.Token, workers int, newWorker WorkerFunc, onAsset func(done int)) []token.Token {
	if workers < 1 {
		workers = 1
	}
	out := make([]token.Token, 0, len(tokens))
	var assets []token.Token
	for _, tok := range tokens {
		if tok.IsAsset() {
			assets = append(assets, tok)
		} else {
			out = append(out, tok)
		}
	}

	if len(assets) > 0 {
		queue := make(chan token.Token)
		results := make(chan token.Token, len(assets))
		var wg sync.WaitGroup
		for id := range workers {
			transform := newWorker(id)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for tok := range queue {
					results <- apply(ctx, transform, tok)
				}
			}()
		}
		go func() {
			for _, tok := range assets {
				queue <- tok
			}
			close(queue)
		}()

		for done := 1; done <= len(assets); done++ {
			out = append(out, <-results)
			if onAsset != nil {
				onAsset(done)
			}
		}
		wg.Wait()
	}

	slices.SortFunc(out, func(a, b token.Token) int { return a.Index - b.Index })
	return out
}

// apply runs transform and pins the result to the input's index.
func apply(ctx context.Context, transform Transform, in token.Token) (out token.Token) {
	out = in
	defer func() {
		if recover() != nil {
			out = in
		}
	}()
	res, err := transform(ctx, in)
	if err != nil {
		return in
	}
	res.Index = in.Index
	return res
}
