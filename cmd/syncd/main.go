// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"

	"github.com/sapcc/go-bits/logg"
)

func main() {
	logg.ShowDebug = os.Getenv("SYNCD_DEBUG") == "true"

	root := newRootCmd()
	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		logg.Fatal(err.Error())
	}
}
