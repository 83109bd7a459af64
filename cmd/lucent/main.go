// Copyright 2025 lucent authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package main provides the lucent CLI.
package main

import (
	"fmt"
	"os"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("lucent %s\n", version)
		return
	}

	fmt.Println("lucent - a JAX-style tracing and autodiff core for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("")
	fmt.Println("lucent is a library first: import github.com/lucent-ml/lucent")
	fmt.Println("and github.com/lucent-ml/lucent/numpy to trace, differentiate,")
	fmt.Println("batch, and jit-compile plain Go functions over backend.Buffer.")
}
