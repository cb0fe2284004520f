package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/abworrall/scalecam/pkg/config"
	"github.com/abworrall/scalecam/pkg/cvframe"
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/frame"
	"github.com/abworrall/scalecam/pkg/pipeline"
	"github.com/abworrall/scalecam/pkg/usbid"
	"github.com/abworrall/scalecam/pkg/wb"
)

var (
	fConfig    string
	fDevice    int
	fNDevices  int
	fWidth     int
	fHeight    int
	fUSB       bool
	fDebug     bool
	fVerbosity int
	fCaptures  string
)

func init() {
	flag.StringVar(&fConfig, "config", "scalecam.yaml", "config file; created when an override is saved")
	flag.IntVar(&fDevice, "device", 0, "capture device index to start with")
	flag.IntVar(&fNDevices, "ndevices", 2, "how many devices 'n' cycles through")
	flag.IntVar(&fWidth, "width", 1280, "requested capture width")
	flag.IntVar(&fHeight, "height", 720, "requested capture height")
	flag.BoolVar(&fUSB, "usb", true, "look up USB vendor/product ids in sysfs, to classify the camera")
	flag.BoolVar(&fDebug, "debug", false, "start with the diagnostic overlay on")
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fCaptures, "captures", ".", "where to save captures (space bar)")
	flag.Parse()

	log.Printf("scalecam starting\n")
}

const help = `keys: 1/2/3 mild/moderate/extreme preset, c clear override, d debug overlay,
      s save override, space save capture, n next device, q quit`

func main() {
	cfgFile, err := config.Open(fConfig)
	if err != nil {
		log.Fatal(err)
	}

	c := cfgFile.Config()
	c.ApplyFlags(flag.CommandLine, &fVerbosity, &fDebug)
	if c.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", c.AsYaml())
	}

	opts := cvframe.Options{Width: fWidth, Height: fHeight}
	if fUSB {
		r := usbid.NewResolver()
		opts.Resolver = &r
	}

	src, err := cvframe.Open(fDevice, opts)
	if err != nil {
		log.Fatal(err)
	}

	p := pipeline.New(c)
	p.Store = cfgFile
	p.Open = cvframe.Opener(opts)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, src) }()

	window := gocv.NewWindow("scalecam")
	defer window.Close()
	fmt.Println(help)

	err = display(ctx, window, p, done)
	if err == errQuit {
		cancel()
		err = <-done
	}
	log.Printf("stopping: %d frames published, %d dropped, %d frame errors; %s\n",
		p.Out.Published(), p.Out.Dropped(), p.Failures(), p.Processor.Stats)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

var errQuit = errors.New("quit")

// display runs the UI loop on the main thread (which OpenCV's highgui
// wants), until quit, interrupt, or the pipeline stopping. On quit the
// pipeline is still running and errQuit is returned.
func display(ctx context.Context, window *gocv.Window, p *pipeline.Pipeline, done <-chan error) error {
	device := fDevice
	var lastSeq uint64
	var latest wb.Result

	for {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return <-done
		default:
		}

		if res, seq, ok := p.Out.ReadIfNew(lastSeq); ok {
			lastSeq, latest = seq, res
			if m, err := cvframe.ToMat(res.Preview); err == nil {
				window.IMShow(m)
				m.Close()
			}
		}

		var cmd pipeline.Command
		switch key := window.WaitKey(10); key {
		case -1:
			continue
		case 'q', 27:
			return errQuit
		case '1':
			cmd = pipeline.SetPreset{Name: ecolor.PresetMild}
		case '2':
			cmd = pipeline.SetPreset{Name: ecolor.PresetModerate}
		case '3':
			cmd = pipeline.SetPreset{Name: ecolor.PresetExtreme}
		case 'c':
			cmd = pipeline.ClearOverride{}
		case 'd':
			cmd = pipeline.ToggleDebug{}
		case 's':
			cmd = pipeline.SaveOverride{}
		case 'n':
			device = (device + 1) % fNDevices
			cmd = pipeline.SwitchSource{Index: device}
		case ' ':
			saveCapture(latest.Corrected)
		}

		if cmd != nil {
			if err := p.Send(cmd); err != nil {
				log.Printf("%v\n", err)
			}
		}
	}
}

func saveCapture(f *frame.Frame) {
	if f == nil {
		return
	}
	fn := filepath.Join(fCaptures, fmt.Sprintf("capture-%s-%06d.png", time.Now().Format("20060102-150405"), f.Seq))
	if err := frame.WritePNG(f, fn); err != nil {
		log.Printf("save capture: %v\n", err)
		return
	}
	log.Printf("saved %s\n", fn)
}
