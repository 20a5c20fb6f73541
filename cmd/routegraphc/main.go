// Command routegraphc compiles a YAML patch file into the binary patch
// format, mirroring sublc's parse/validate/emit pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sbl8/routegraph/patch"
)

func main() {
	var (
		validate = flag.Bool("validate", true, "validate graph structure before emitting")
		debug    = flag.Bool("debug", false, "print the parsed graph before compiling")
		version  = flag.Bool("version", false, "show version information")
	)
	flag.Parse()

	if *version {
		fmt.Println("routegraphc - routegraph patch compiler v1.0.0")
		return
	}

	args := flag.Args()
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <patch.yaml> <out.rgpatch>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	srcFile, outFile := args[0], args[1]

	f, err := os.Open(srcFile)
	if err != nil {
		log.Fatalf("opening %s: %v", srcFile, err)
	}
	defer f.Close()

	g, err := patch.LoadYAML(f)
	if err != nil {
		log.Fatalf("parsing %s: %v", srcFile, err)
	}

	if *validate {
		if err := g.Validate(); err != nil {
			log.Fatalf("validation failed: %v", err)
		}
	}

	if *debug {
		fmt.Printf("parsed %d nodes, %d connections, slot size %d\n",
			len(g.Nodes), len(g.Connections), g.SlotSize)
	}

	data, err := g.Encode()
	if err != nil {
		log.Fatalf("encoding failed: %v", err)
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		log.Fatalf("writing %s: %v", outFile, err)
	}

	fmt.Printf("Successfully compiled %s -> %s\n", srcFile, outFile)
}
