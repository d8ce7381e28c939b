package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/davidhesselbom/freq-sub001/dag"
	"github.com/davidhesselbom/freq-sub001/heightmap"
	"github.com/davidhesselbom/freq-sub001/interval"
	"github.com/davidhesselbom/freq-sub001/log"
	"github.com/davidhesselbom/freq-sub001/metric"
	"github.com/davidhesselbom/freq-sub001/operation"
	"github.com/davidhesselbom/freq-sub001/scheduler"
	"github.com/davidhesselbom/freq-sub001/spectrum"
	"github.com/davidhesselbom/freq-sub001/wav"
)

const (
	pngWidth  = 1024
	pngHeight = 512
)

type renderCommand struct {
	in          string
	window      int
	bands       int
	workers     int
	blockWidth  int
	blockHeight int
	frames      int
	timeout     time.Duration
	pngPath     string
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Compute spectrum heightmap of a wav file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.in, "in", "", "input wav file (required)")
	fs.IntVar(&cmd.window, "window", 1024, "spectrum window size in samples")
	fs.IntVar(&cmd.bands, "bands", 64, "number of frequency bands")
	fs.IntVar(&cmd.workers, "workers", runtime.NumCPU(), "number of cpu workers")
	fs.IntVar(&cmd.blockWidth, "block-width", heightmap.DefaultBlockSize.Width, "heightmap block width in texels")
	fs.IntVar(&cmd.blockHeight, "block-height", heightmap.DefaultBlockSize.Height, "heightmap block height in texels")
	fs.IntVar(&cmd.frames, "frames", 3, "number of frames to render")
	fs.DurationVar(&cmd.timeout, "timeout", time.Minute, "computation timeout")
	fs.StringVar(&cmd.pngPath, "png", "", "save background block to png file")
}

// Validate checks required flags.
func (cmd *renderCommand) Validate() error {
	var message string
	if cmd.in == "" {
		message += "Missing -in required flag\n"
	}
	if cmd.workers < 1 {
		message += "At least one worker is required\n"
	}
	if cmd.frames < 1 {
		message += "At least one frame is required\n"
	}
	if message != "" {
		return errors.New(message)
	}
	return nil
}

func (cmd *renderCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	logger := log.GetLogger()

	source, err := wav.Open(cmd.in)
	if err != nil {
		return err
	}
	spec, err := spectrum.New(cmd.window, cmd.bands)
	if err != nil {
		return err
	}
	chain, err := dag.NewChain(source, dag.WithLogger(logger), dag.WithName(cmd.in))
	if err != nil {
		return err
	}
	terminal := chain.Append(spec)

	s, err := scheduler.New(scheduler.WithLogger(logger), scheduler.WithName(cmd.in))
	if err != nil {
		return err
	}
	head := chain.NewHead()
	defer head.Close()
	head.Request(interval.From(source.Interval()))
	s.AddHead(head)
	defer s.RemoveHead(head)

	ctx, cancel := context.WithTimeout(context.Background(), cmd.timeout)
	defer cancel()
	engines := make([]operation.Engine, cmd.workers)
	for i := range engines {
		engines[i] = operation.CPU(i)
	}
	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(ctx, engines...)
	}()

	start := time.Now()
	waitErr := s.WaitFor(ctx, head)
	cancel()
	if err := <-errc; err != nil {
		return err
	}
	if waitErr != nil {
		return fmt.Errorf("waiting for %v: %w", cmd.in, waitErr)
	}
	out := terminal.Cache().Read(source.Interval())
	fmt.Printf("Computed %v (%v) of %s in %v with %d workers\n", source.Interval(), out.Duration(), cmd.in, time.Since(start), cmd.workers)

	collection, err := heightmap.New(
		heightmap.WithLogger(logger),
		heightmap.WithBlockSize(cmd.blockWidth, cmd.blockHeight),
	)
	if err != nil {
		return err
	}
	defer collection.Clear()
	background, ok := collection.SetSignalLength(source.Len())
	if !ok {
		return fmt.Errorf("background block: %w", heightmap.ErrAllocation)
	}
	updater := heightmap.NewUpdater(collection)
	visible := background.Reference().Children()
	for frame := 0; frame < cmd.frames; frame++ {
		collection.GetBlock(background.Reference())
		// zoom in on the first half of the signal from the second frame
		for i, ref := range visible {
			if frame > 0 && i%2 == 1 {
				continue
			}
			collection.GetBlock(ref)
		}
		updated := updater.Update(out)
		released := collection.NextFrame()
		fmt.Printf("Frame %d: %d blocks updated, %d released, %d cached\n", frame, updated, len(released), collection.Size())
	}
	released := collection.RunGarbageCollection()
	fmt.Printf("Released %d unused blocks, %d cached\n", len(released), collection.Size())
	if collection.FailedAllocation() {
		fmt.Println("Some blocks could not be allocated")
	}
	if cmd.pngPath != "" {
		if err := savePNG(cmd.pngPath, background); err != nil {
			return err
		}
		fmt.Printf("Saved %s\n", cmd.pngPath)
	}

	printMetrics(metric.GetAll())
	return nil
}

func savePNG(path string, b *heightmap.Block) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, b.Image(pngWidth, pngHeight)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printMetrics(all map[string]map[string]string) {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s:\n", name)
		counters := all[name]
		keys := make([]string, 0, len(counters))
		for k := range counters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("\t%s: %s\n", k, counters[k])
		}
	}
}
