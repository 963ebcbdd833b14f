package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/quadtape/quadtape"
)

func main() {
	var (
		exportPath  = flag.String("export", "", "render the mix to a WAV file and exit (no audio device)")
		playFor     = flag.Duration("play-for", 0, "stop after this long (0 = play until interrupted)")
		recordTrack = flag.Int("record", -1, "record the default input onto this track (0-3)")
		recordFor   = flag.Duration("record-for", 5*time.Second, "recording length when -record is set")

		speeds = flag.String("speeds", "", "per-track speed values -100..100, comma separated")
		faders = flag.String("faders", "", "per-track fader levels 0..1, comma separated")
		sends  = flag.String("sends", "", "per-track reverb send levels 0..1, comma separated")
		mutes  = flag.String("mute", "", "track numbers to mute, comma separated")
		solo   = flag.Int("solo", -1, "solo this track (0-3)")

		reverbMix  = flag.Float64("reverb-mix", 0, "master reverb wet amount 0..1")
		reverbSize = flag.Float64("reverb-size", 0, "master reverb size 0..1")

		tapeSaturation = flag.Float64("tape-saturation", 0, "tape saturation 0-100")
		tapeWow        = flag.Float64("tape-wow", 0, "tape wow 0-100")
		tapeFlutter    = flag.Float64("tape-flutter", 0, "tape flutter 0-100")
		tapeDropouts   = flag.Float64("tape-dropouts", 0, "tape dropout intensity 0-100")
		tapeHiss       = flag.Float64("tape-hiss", 0, "tape hiss 0-100")
		tapeAge        = flag.Float64("tape-age", 0, "tape age 0-100")
		tapeBypass     = flag.Bool("tape-bypass", false, "bypass the tape unit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [file ...]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Each file (wav or mp3) is loaded onto the next free track, up to 4.")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) > quadtape.NumTracks {
		log.Fatalf("at most %d files, got %d", quadtape.NumTracks, len(files))
	}

	opts := []quadtape.LooperOption{}
	if *exportPath != "" {
		opts = append(opts, quadtape.WithoutOutput())
	}
	l, err := quadtape.NewLooper(opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer l.Close()

	for i, path := range files {
		if err := l.LoadFile(i, path); err != nil {
			log.Fatalf("track %d: %v", i, err)
		}
		fmt.Printf("track %d: %s\n", i, path)
	}

	applyList(*speeds, func(i int, v float64) error { return l.SetSpeed(i, v) })
	applyList(*faders, func(i int, v float64) error { return l.SetFader(i, v) })
	applyList(*sends, func(i int, v float64) error { return l.SetSend(i, v) })
	for _, n := range parseTrackList(*mutes) {
		if err := l.SetMuted(n, true); err != nil {
			log.Fatal(err)
		}
	}
	if *solo >= 0 {
		if err := l.SetSolo(*solo, true); err != nil {
			log.Fatal(err)
		}
	}

	m := l.Master()
	m.SetReverbMix(*reverbMix)
	if *reverbSize > 0 {
		m.SetReverbSize(*reverbSize)
	}
	m.SetTapeSaturation(*tapeSaturation)
	m.SetTapeWow(*tapeWow)
	m.SetTapeFlutter(*tapeFlutter)
	m.SetTapeDropouts(*tapeDropouts)
	m.SetTapeHiss(*tapeHiss)
	m.SetTapeAge(*tapeAge)
	m.SetTapeBypass(*tapeBypass)

	if *recordTrack >= 0 {
		if err := l.Record(*recordTrack); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("recording track %d for %s\n", *recordTrack, *recordFor)
		time.Sleep(*recordFor)
		l.StopRecording()
		if err := l.Play(*recordTrack); err != nil {
			log.Fatal(err)
		}
	}

	if *exportPath != "" {
		if err := l.ExportWAVFile(*exportPath); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("exported mix to %s\n", *exportPath)
		return
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	if *playFor > 0 {
		select {
		case <-time.After(*playFor):
		case <-interrupt:
		}
	} else {
		<-interrupt
	}
}

// applyList parses a comma-separated per-track value list and applies
// each entry to its track index.
func applyList(list string, set func(int, float64) error) {
	if strings.TrimSpace(list) == "" {
		return
	}
	for i, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" || i >= quadtape.NumTracks {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			log.Fatalf("invalid value %q: %v", field, err)
		}
		if err := set(i, v); err != nil {
			log.Fatal(err)
		}
	}
}

func parseTrackList(list string) []int {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []int
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			log.Fatalf("invalid track number %q: %v", field, err)
		}
		out = append(out, n)
	}
	return out
}
