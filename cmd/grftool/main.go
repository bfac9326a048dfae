// grftool packs and inspects GRF archives holding viewer assets.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/charview/pkg/formats"
	"github.com/Faultbox/charview/pkg/grf"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "list", "ls":
		err = cmdList(args)
	case "extract", "x":
		err = cmdExtract(args)
	case "pack":
		err = cmdPack(args)
	case "model":
		err = cmdModel(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`grftool - GRF archive utility for charview assets

Usage:
  grftool <command> [options]

Commands:
  info <file.grf>                    Show archive information
  list <file.grf> [pattern]          List files (optional glob pattern)
  extract <file.grf> <path> [output] Extract file(s) to directory
  pack <out.grf> <dir> [prefix]      Pack a directory (names get prefix, default "data")
  model <file.grf|file.rsm> [path]   Describe an RSM model

Examples:
  grftool pack models.grf ./assets
  grftool list models.grf "*.rsm"
  grftool model models.grf data/model/hero.rsm
  charview -model grf://data/model/hero.rsm`)
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: grftool info <file.grf>")
	}

	archive, err := grf.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	files := archive.List()
	extCount := make(map[string]int)
	var packed, unpacked uint64
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if ext == "" {
			ext = "(no ext)"
		}
		extCount[ext]++
		if e, ok := archive.Stat(f); ok {
			packed += uint64(e.CompressedSize)
			unpacked += uint64(e.UncompressedSize)
		}
	}

	fmt.Printf("Archive: %s\n", args[0])
	fmt.Printf("Files:   %d\n", len(files))
	fmt.Printf("Size:    %.2f MB packed, %.2f MB unpacked\n",
		float64(packed)/(1024*1024), float64(unpacked)/(1024*1024))
	fmt.Println()
	fmt.Println("Files by type:")

	exts := make([]string, 0, len(extCount))
	for ext := range extCount {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if extCount[exts[i]] != extCount[exts[j]] {
			return extCount[exts[i]] > extCount[exts[j]]
		}
		return exts[i] < exts[j]
	})
	for _, ext := range exts {
		fmt.Printf("  %-10s %d\n", ext, extCount[ext])
	}
	return nil
}

func cmdList(args []string) error {
	fset := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fset.Int("n", 0, "Limit output to N files (0 = all)")
	fset.Parse(args)

	if fset.NArg() < 1 {
		return fmt.Errorf("usage: grftool list <file.grf> [pattern]")
	}

	archive, err := grf.Open(fset.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	pattern := ""
	if fset.NArg() > 1 {
		pattern = fset.Arg(1)
	}
	matches := match(archive.List(), pattern)
	if *limit > 0 && len(matches) > *limit {
		matches = matches[:*limit]
	}
	for _, f := range matches {
		fmt.Println(f)
	}
	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", len(matches))
	}
	return nil
}

// match filters names by a glob on the base name or a substring of the
// full path, case-insensitively. An empty pattern matches everything.
func match(names []string, pattern string) []string {
	if pattern == "" {
		return names
	}
	pattern = strings.ToLower(pattern)
	var out []string
	for _, n := range names {
		lower := strings.ToLower(n)
		ok, _ := filepath.Match(pattern, filepath.Base(lower))
		if ok || strings.Contains(lower, pattern) {
			out = append(out, n)
		}
	}
	return out
}

func cmdExtract(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: grftool extract <file.grf> <path> [output_dir]")
	}
	outputDir := "."
	if len(args) > 2 {
		outputDir = args[2]
	}

	archive, err := grf.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	names := []string{args[1]}
	if strings.ContainsAny(args[1], "*?[") {
		names = match(archive.List(), args[1])
	}

	extracted := 0
	for _, name := range names {
		data, err := archive.Read(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", name, err)
			continue
		}
		out := filepath.Join(outputDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		fmt.Printf("Extracted: %s (%d bytes)\n", out, len(data))
		extracted++
	}
	if extracted == 0 {
		return fmt.Errorf("nothing extracted for %s", args[1])
	}
	return nil
}

func cmdPack(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: grftool pack <out.grf> <dir> [prefix]")
	}
	prefix := "data"
	if len(args) > 2 {
		prefix = args[2]
	}

	files, err := collect(args[1], prefix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files under %s", args[1])
	}

	out, err := os.Create(args[0])
	if err != nil {
		return err
	}
	if err := grf.Write(out, files); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("Packed %d files into %s\n", len(files), args[0])
	return nil
}

// collect reads every regular file under dir, named prefix/relative/path.
func collect(dir, prefix string) ([]grf.File, error) {
	var files []grf.File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if prefix != "" {
			name = prefix + "/" + name
		}
		files = append(files, grf.File{Name: name, Data: data})
		return nil
	})
	return files, err
}

func cmdModel(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: grftool model <file.grf> <path> | grftool model <file.rsm>")
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(args[0]), ".grf") {
		if len(args) < 2 {
			return fmt.Errorf("model path inside %s required", args[0])
		}
		archive, err := grf.Open(args[0])
		if err != nil {
			return err
		}
		defer archive.Close()
		data, err = archive.Read(args[1])
		if err != nil {
			return err
		}
	} else if data, err = os.ReadFile(args[0]); err != nil {
		return err
	}

	rsm, err := formats.ParseRSM(data)
	if err != nil {
		return err
	}
	describeRSM(rsm)
	return nil
}

func describeRSM(rsm *formats.RSM) {
	fmt.Printf("Version:   %s\n", rsm.Version)
	fmt.Printf("Root:      %s\n", rsm.RootNode)
	fmt.Printf("Nodes:     %d\n", len(rsm.Nodes))
	fmt.Printf("Faces:     %d\n", rsm.FaceCount())
	if rsm.HasAnimation() {
		fmt.Printf("Animation: %d ms\n", rsm.AnimLength)
	} else {
		fmt.Println("Animation: none")
	}
	fmt.Println("Textures:")
	for i, t := range rsm.Textures {
		fmt.Printf("  %2d %s\n", i, t)
	}
}
