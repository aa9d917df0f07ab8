package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bytedance/sonic"

	"github.com/radioforge/iqbridge/internal/ring"
)

func main() {
	jsonOut := flag.Bool("json", false, "emit machine-readable JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ringstat [-json] stats|delete <ring-file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	command, path := flag.Arg(0), flag.Arg(1)

	switch command {
	case "stats":
		stats, err := ring.ReadStats(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		if *jsonOut {
			out, err := sonic.Marshal(stats)
			if err != nil {
				log.Fatalf("marshal stats: %v", err)
			}
			fmt.Println(string(out))
			return
		}
		fmt.Printf("ring %s\n", path)
		fmt.Printf("  geometry:     %d slots x %d samples x %d channels\n",
			stats.NumSlots, stats.ChunkSize, stats.NumChannels)
		fmt.Printf("  write_index:  %d\n", stats.WriteIndex)
		fmt.Printf("  read_index:   %d\n", stats.ReadIndex)
		fmt.Printf("  pending:      %d\n", stats.WriteIndex-stats.ReadIndex)
		fmt.Printf("  errors:       %d\n", stats.ErrorCount)
		fmt.Printf("  stalls:       %d\n", stats.BufferStallCount)
		fmt.Printf("  writer_done:  %v\n", stats.WriterDone)

	case "delete":
		if err := ring.Delete(path); err != nil {
			log.Fatalf("delete %s: %v", path, err)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
