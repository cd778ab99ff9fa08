package main

import (
	"io"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
)

// printBanner writes the startup banner.
func printBanner(w io.Writer) {
	banner := figure.NewFigure("certcrawler", "small", true)

	cyan := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	_, _ = cyan.Fprint(w, banner.String())
	_, _ = faint.Fprintf(w, "  same-origin crawler %s\n\n", getVersion())
}
