/*
Package lkflow estimates the apparent motion between consecutive frames of an image sequence
using the Lucas-Kanade differential method and renders the estimated flow as arrows drawn over the source frames.

The package provides a command line interface which walks a directory of sequentially numbered frames
and writes one annotated image for every consecutive frame pair. To check the supported flags type:

	$ lkflow --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"context"
		"fmt"

		"github.com/esimov/lkflow"
	)

	func main() {
		cfg := lkflow.DefaultConfig()
		cfg.Input.Dir = "frames_input"
		cfg.Output.Dir = "frames_output"

		codec := lkflow.NewFileCodec()
		src := lkflow.NewDirSource(cfg.Input.Dir, cfg.Input.Pattern, cfg.Input.Start, codec)
		p := lkflow.NewPipeline(cfg, src, codec)

		sum, err := p.Run(context.Background())
		if err != nil {
			fmt.Printf("Error computing the optical flow: %s", err.Error())
		}
		fmt.Printf("%d flow images written", sum.Pairs)
	}

The flow field can also be computed directly from two intensity images:

	field, err := lkflow.BuildField(prev, curr, 5)
*/
package lkflow
