// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package lucent

import "github.com/lucent-ml/lucent/pytree"

// Jacfwd builds a Jacobian by applying jvp along each standard basis
// tangent: for a function from a flat sequence of
// scalar leaves to a flat sequence of scalar outputs, it runs Jvp once
// per input leaf with that leaf's tangent set to 1 and every other
// leaf's tangent set to 0, returning one row (a pytree shaped like the
// output) per input leaf.
//
// Leaves with rank > 0 are out of scope: building the full per-element
// Jacobian of an array-valued leaf needs one-hot basis vectors over
// its individual elements, which is array-indexing machinery that
// belongs to the numpy layer, not the tracing core this package
// implements.
func Jacfwd(f Fn) Fn {
	return func(x any) (any, error) {
		leaves, treedef := pytree.Flatten(x)
		n := len(leaves)
		rows := make([]any, n)
		for i := range leaves {
			tangentLeaves := make([]any, n)
			for j := range tangentLeaves {
				if i == j {
					tangentLeaves[j] = float64(1)
				} else {
					tangentLeaves[j] = float64(0)
				}
			}
			tangentTree, err := pytree.Unflatten(treedef, tangentLeaves)
			if err != nil {
				return nil, err
			}
			_, tOut, err := Jvp(f, x, tangentTree)
			if err != nil {
				return nil, err
			}
			rows[i] = tOut
		}
		return rows, nil
	}
}

// Jacrev builds a Jacobian by applying vjp with each basis cotangent:
// linearize f once at x, then run backward once per output
// leaf with that leaf's cotangent set to 1 and every other leaf's set
// to 0, returning one row (a pytree shaped like the input) per output
// leaf. Subject to the same scalar-leaf scope note as Jacfwd.
func Jacrev(f Fn) Fn {
	return func(x any) (any, error) {
		primalOut, backward, err := Vjp(f, x)
		if err != nil {
			return nil, err
		}
		outLeaves, outTreedef := pytree.Flatten(primalOut)
		m := len(outLeaves)
		rows := make([]any, m)
		for i := range outLeaves {
			ctLeaves := make([]any, m)
			for j := range ctLeaves {
				if i == j {
					ctLeaves[j] = float64(1)
				} else {
					ctLeaves[j] = float64(0)
				}
			}
			ctTree, uerr := pytree.Unflatten(outTreedef, ctLeaves)
			if uerr != nil {
				return nil, uerr
			}
			grad, berr := backward(ctTree)
			if berr != nil {
				return nil, berr
			}
			rows[i] = grad
		}
		return rows, nil
	}
}
