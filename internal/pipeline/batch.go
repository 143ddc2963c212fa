// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunBatch runs p once per initial state. Runs are independent: each owns its
// state and no run reads another's result. With concurrency <= 1 runs are
// strictly sequential in input order.
//
// The first failure aborts the whole batch: pending runs are not started,
// in-flight runs see a cancelled context, and no partial results are
// returned. Results are in input order.
func RunBatch(ctx context.Context, p *Pipeline, inputs []*State, concurrency int) ([]*State, error) {
	out := make([]*State, len(inputs))
	if concurrency <= 1 {
		for i, st := range inputs {
			res, err := p.Run(ctx, st)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, st := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := p.Run(gctx, st)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, tag(p.Name, err)
	}
	return out, nil
}
