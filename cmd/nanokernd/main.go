package main

import (
	"fmt"
	"log"

	"github.com/jessevdk/go-flags"

	"github.com/emberkernel/nanokern"
)

type options struct {
	NProc    int  `short:"n" long:"nproc" default:"64" description:"Task table size"`
	Ticks    int  `short:"t" long:"ticks" default:"1000" description:"Number of scheduler ticks to simulate"`
	Boost    int  `short:"b" long:"boost" default:"200" description:"MLFQ boost period, in ticks"`
	ShareCap int  `short:"s" long:"sharecap" default:"80" description:"Stride share cap"`
	Verbose  bool `short:"v" long:"verbose" description:"Also print every tick's pick, not just the summary"`
}

func main() {
	log.SetFlags(0)

	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassAfterNonOption)
	if _, err := parser.Parse(); err != nil {
		if err, ok := err.(*flags.Error); ok && err.Type == flags.ErrHelp {
			log.Fatal(err)
		}
		log.Fatalf("Invalid arguments: %s", err)
	}

	k := nanokern.New(opts.NProc).Boost(opts.Boost).ShareCap(opts.ShareCap).Build()

	worker, err := k.Fork(k.Init(), "worker", nil)
	if err != nil {
		log.Fatalf("nanokernd: fork worker: %s", err)
	}
	if err := k.SetCPUShare(worker, 20); err != nil {
		log.Fatalf("nanokernd: set cpu share: %s", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := k.Fork(k.Init(), fmt.Sprintf("best-effort-%d", i), nil); err != nil {
			log.Fatalf("nanokernd: fork: %s", err)
		}
	}

	counts := map[string]int{}
	for i := 0; i < opts.Ticks; i++ {
		k.Tick()
		t := k.Scheduler().Pick()
		if t == nil {
			continue
		}
		counts[t.Name]++
		if opts.Verbose {
			log.Printf("tick %d: picked %s (level=%d)", i, t.Name, k.Scheduler().GetLevel(t))
		}
	}

	for name, n := range counts {
		fmt.Printf("%-20s %d ticks\n", name, n)
	}
}
