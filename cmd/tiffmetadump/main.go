// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command tiffmetadump prints the IFDs of a TIFF, BigTIFF, JPEG, PNG or WebP
// file, either as a human readable map or as the structural document form.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bep/tiffmeta"
	"github.com/pkg/errors"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("tiffmetadump: ")
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tiffmetadump", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "map", "output format, map or doc")
	first := fs.Bool("first", false, "only read the first IFD in the chain")
	verbose := fs.Bool("v", false, "log skipped entries")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tiffmetadump [flags] <file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one file")
	}
	if *format != "map" && *format != "doc" {
		return errors.Errorf("unknown format %q", *format)
	}

	warnf := func(string, ...any) {}
	if *verbose {
		logger := log.New(stderr, "warning: ", 0)
		warnf = logger.Printf
	}

	filename := fs.Arg(0)
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	dirs, err := readDirectories(f, *first, warnf)
	if err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}

	switch *format {
	case "doc":
		b, err := tiffmeta.MarshalDirectories(dirs)
		if err != nil {
			return errors.Wrap(err, "marshal")
		}
		_, err = fmt.Fprintln(stdout, string(b))
		return err
	default:
		maps := make([]map[string]any, len(dirs))
		for i, d := range dirs {
			maps[i] = d.ToMap()
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(maps), "encode")
	}
}

func readDirectories(r io.ReadSeeker, first bool, warnf func(string, ...any)) ([]*tiffmeta.Directory, error) {
	payload, err := tiffmeta.DetectPayload(r)
	if err != nil {
		return nil, err
	}

	reg := tiffmeta.NewRegistry()
	dr := tiffmeta.NewDirectoryReader(tiffmeta.ReaderOptions{
		R: payload,
		TagSets: []*tiffmeta.TagSet{
			reg.NewBaselineSuperset(),
			reg.EXIF(),
			reg.GPS(),
			reg.Interoperability(),
		},
		Warnf: warnf,
	})

	if first {
		d, err := dr.ReadFirst()
		if err != nil {
			return nil, err
		}
		return []*tiffmeta.Directory{d}, nil
	}
	return dr.ReadAll()
}
