// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
)

// Adversarial is the least-squares GAN loss of the generator: it pushes the discriminator scores of the
// generated (fake) frames towards the "real" label 1.
//
// It returns `mean((fake - 1)^2 / 2)`.
func Adversarial(fakeScores *Node) *Node {
	return ReduceAllMean(halfSquare(AddScalar(fakeScores, -1.0)))
}

// Discriminator is the least-squares GAN loss of the discriminator: it pushes the scores of real frames
// towards 1 and the scores of the generated (fake) frames towards 0.
//
// It returns `mean((real - 1)^2 / 2) + mean(fake^2 / 2)`.
func Discriminator(realScores, fakeScores *Node) *Node {
	return Add(
		ReduceAllMean(halfSquare(AddScalar(realScores, -1.0))),
		ReduceAllMean(halfSquare(fakeScores)))
}

func halfSquare(x *Node) *Node {
	return DivScalar(Square(x), 2.0)
}
