package main

import (
	"flag"
	"log"
	"strings"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/config"
	"github.com/abworrall/scalecam/pkg/frame"
	"github.com/abworrall/scalecam/pkg/still"
	"github.com/abworrall/scalecam/pkg/wb"
)

var (
	fConfig    string
	fOutDir    string
	fHDR       bool
	fLuma      bool
	fVerbosity int
)

func init() {
	flag.StringVar(&fConfig, "config", "scalecam.yaml", "config file (color models, thresholds, class overrides)")
	flag.StringVar(&fOutDir, "outdir", "", "where to write outputs; default is alongside each input")
	flag.BoolVar(&fHDR, "hdr", false, "also write the unclipped correction as a Radiance .hdr")
	flag.BoolVar(&fLuma, "luma", false, "also write the luminance plane the estimator masks on")
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.Parse()

	log.Printf("wbstill starting\n")
}

func main() {
	c, err := config.Load(fConfig)
	if err != nil {
		log.Fatal(err)
	}
	c.ApplyFlags(flag.CommandLine, &fVerbosity, nil)
	if c.Verbosity > 1 {
		log.Printf("Final configuration:-\n\n%s\n", c.AsYaml())
	}

	files, err := still.FindFilesAndDirs(flag.Args()...)
	if err != nil {
		log.Fatal(err)
	}

	cls := camera.NewClassifier(c.ClassMap)
	est := wb.NewEstimator(c.Thresholds)
	stats := wb.NewStats()

	for _, fn := range files {
		s, err := still.Load(fn)
		if err != nil {
			log.Printf("skipping: %v\n", err)
			continue
		}

		d, err := still.Develop(s, cls, c.ColorModels, est)
		if err != nil {
			log.Printf("skipping: %v\n", err)
			stats.RecordMalformed()
			continue
		}
		stats.Record(wb.Diagnostics{Class: d.Class, Gains: d.Gains, Fallback: d.Estimate.Fallback, Degenerate: d.Estimate.Degenerate})
		log.Printf("%s\n", d)
		if c.Verbosity > 0 {
			log.Printf("  %s\n", d.Estimate)
		}

		out := still.OutputFilename(fn, fOutDir)
		if err := frame.WritePNG(d.Corrected, out); err != nil {
			log.Fatal(err)
		}

		if fHDR {
			u := wb.Unclipped{Frame: s.Frame, Gains: d.Gains}
			hdrOut := strings.TrimSuffix(out, ".png") + ".hdr"
			if err := u.WriteHDR(hdrOut); err != nil {
				log.Fatal(err)
			}
			log.Printf("  %s: %.1f%% of pixels clipped by the gains\n", hdrOut, 100*u.ClippedFraction())
		}

		if fLuma {
			fg := wb.LumaGrid(s.Frame)
			if c.Verbosity > 0 {
				log.Printf("  luma %s\n", fg.Stats())
			}
			if err := frame.WritePNG(fg.ToImg(d.Estimate.String()), strings.TrimSuffix(out, ".png")+"-luma.png"); err != nil {
				log.Fatal(err)
			}
		}
	}

	log.Printf("%d files; %s\n", len(files), stats)
}
