package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/moffa90/go-sdupdater/updater"
)

// textReporter draws a progress line on a terminal.
type textReporter struct {
	w io.Writer
}

func (r *textReporter) Announce(label string) {
	fmt.Fprintf(r.w, "LOADING %s\n", label)
}

func (r *textReporter) Progress(p updater.Progress) {
	fmt.Fprintf(r.w, "\r[%-50s] %3d%% %s / %s",
		bar(p.Percent, 50),
		p.Percent,
		humanize.Bytes(uint64(p.BytesWritten)),
		humanize.Bytes(uint64(p.TotalBytes)),
	)
	if p.Percent >= 100 {
		fmt.Fprintf(r.w, " in %s\n", p.ElapsedTime.Round(time.Millisecond))
	}
}

func bar(percent, width int) string {
	filled := percent * width / 100
	b := make([]byte, width)
	for i := range b {
		if i < filled {
			b[i] = '='
		} else {
			b[i] = ' '
		}
	}
	return string(b)
}
