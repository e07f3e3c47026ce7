package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joeblew999/sichatas/internal/geodata"
)

type datasetFetcher interface {
	Fetch(ctx context.Context, ds geodata.Dataset) (geodata.Result, error)
}

// fetchAll loads every catalog dataset once, prints one line per dataset and
// returns the number of failures.
func fetchAll(ctx context.Context, catalog geodata.Catalog, f datasetFetcher, w io.Writer) int {
	failed := 0
	for _, ds := range catalog.Datasets {
		res, err := f.Fetch(ctx, ds)
		if err != nil {
			failed++
			fmt.Fprintf(w, "  %-12s error: %v\n", ds.Name, err)
			continue
		}
		fmt.Fprintf(w, "  %-12s %d valid features out of %d\n", ds.Name, res.Count, res.Total)
	}
	return failed
}
