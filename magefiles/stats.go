//go:build mage

package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
)

// packageLines is the line count of one Go package directory.
type packageLines struct {
	prod, test int
}

// Stats prints Go line counts per package under cmd, internal, and pkg.
func Stats() error {
	counts := map[string]*packageLines{}
	for _, root := range []string{"cmd", "internal", "pkg"} {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".go" {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			dir := filepath.Dir(path)
			pl := counts[dir]
			if pl == nil {
				pl = &packageLines{}
				counts[dir] = pl
			}
			n := bytes.Count(data, []byte("\n"))
			if strings.HasSuffix(path, "_test.go") {
				pl.test += n
			} else {
				pl.prod += n
			}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	dirs := make([]string, 0, len(counts))
	for dir := range counts {
		dirs = append(dirs, dir)
	}
	slices.Sort(dirs)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "package\tprod\ttest\t")
	var total packageLines
	for _, dir := range dirs {
		pl := counts[dir]
		fmt.Fprintf(w, "%s\t%d\t%d\t\n", filepath.ToSlash(dir), pl.prod, pl.test)
		total.prod += pl.prod
		total.test += pl.test
	}
	fmt.Fprintf(w, "total\t%d\t%d\t\n", total.prod, total.test)
	return w.Flush()
}
