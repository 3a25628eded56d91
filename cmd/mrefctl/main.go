// Copyright (C) 2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/luxfi/vectorchan/buildref"
	"github.com/luxfi/vectorchan/merkleref"
	"github.com/luxfi/vectorchan/utils/formatting"
	"github.com/luxfi/vectorchan/utils/version"
	"github.com/luxfi/vectorchan/vtlog"
)

var logger = vtlog.NewStderr("mrefctl")

var toolVersion = version.Application{
	Name:    "mrefctl",
	Version: version.Semantic{Major: 0, Minor: 1, Patch: 0},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "version":
		fmt.Println(toolVersion.String())
		return
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mrefctl <build|verify|version> [flags]")
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	source := fs.String("source", "", "path to the source file to hash")
	out := fs.String("out", "", "path to write the .mref file")
	chunkSize := fs.Uint64("chunk-size", 1<<20, "chunk size in bytes (power of two)")
	workers := fs.Int("workers", 0, "hashing worker count (0 = all cores)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" || *out == "" {
		return fmt.Errorf("build requires -source and -out")
	}

	ref, err := buildref.FromFile(context.Background(), *source, buildref.Options{
		ChunkSize: *chunkSize,
		Workers:   *workers,
		OnProgress: func(p buildref.Progress) {
			logger.Info("hashing progress", "progress", p.String())
		},
	})
	if err != nil {
		return fmt.Errorf("building reference: %w", err)
	}
	if err := ref.Save(*out); err != nil {
		return fmt.Errorf("saving reference: %w", err)
	}
	rootHash := ref.RootHash()
	encoded, err := formatting.Encode(formatting.HexC, rootHash[:])
	if err != nil {
		return err
	}
	logger.Info("reference built", "out", *out, "root_hash", encoded)
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	source := fs.String("source", "", "path to the local file to verify")
	refPath := fs.String("ref", "", "path to the trusted .mref file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" || *refPath == "" {
		return fmt.Errorf("verify requires -source and -ref")
	}

	ref, err := merkleref.Load(*refPath)
	if err != nil {
		return fmt.Errorf("loading reference: %w", err)
	}

	result, err := buildref.VerifyAgainstReference(context.Background(), *source, ref, buildref.Options{})
	if err != nil {
		return fmt.Errorf("verifying: %w", err)
	}
	if result.RootHashMatches {
		logger.Info("verify passed", "source", *source)
		return nil
	}

	logger.Error("verify failed", "source", *source, "mismatched_chunks", len(result.MismatchedChunks))
	sh := ref.Shape()
	for _, k := range result.MismatchedChunks {
		leaf, err := sh.ChunkIndexToLeafNode(k)
		if err != nil {
			return err
		}
		offset, length, err := sh.ByteRangeForNode(leaf)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "chunk %d mismatched: bytes [%d, %d)\n", k, offset, offset+length)
	}
	os.Exit(1)
	return nil
}
