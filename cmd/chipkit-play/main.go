package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cbegin/chipkit-go"
)

func main() {
	var (
		sampleRate  = flag.Int("sample-rate", 48000, "output sample rate")
		channels    = flag.Int("channels", 2, "output channels")
		backendName = flag.String("backend", "ebiten", "audio backend: ebiten|oto")
		loop        = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops       = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		volume      = flag.Float64("volume", 1.0, "master volume (0..1)")
		samplePath  = flag.String("sample", "", "WAV file played by an extra sample voice")
		outPath     = flag.String("out", "", "render to this WAV file instead of playing")
		seconds     = flag.Float64("seconds", 8, "length rendered with -out")
		verbose     = flag.Bool("v", false, "log player lifecycle")
	)
	flag.Parse()

	sample, err := loadSample(*samplePath)
	if err != nil {
		log.Fatal(err)
	}
	song, err := demoSong(sample)
	if err != nil {
		log.Fatal(err)
	}

	if *outPath != "" {
		if err := render(song, *outPath, *sampleRate, *channels, *seconds); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", *outPath)
		return
	}

	backend, err := parseBackend(*backendName)
	if err != nil {
		log.Fatal(err)
	}
	opts := []chipkit.PlayerOption{
		chipkit.WithBackend(backend),
		chipkit.WithChannels(*channels),
		chipkit.WithLoopPlayback(*loop),
	}
	if *verbose {
		opts = append(opts, chipkit.WithLogger(log.Default()))
	}
	pl, err := chipkit.NewPlayer(*sampleRate, opts...)
	if err != nil {
		log.Fatal(err)
	}
	pl.SetMasterVolume(*volume)
	ch := pl.Watch()
	if err := pl.Play(song); err != nil {
		log.Fatal(err)
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case chipkit.EventPlaybackEnded:
			if event.Err != nil {
				log.Printf("playback failed: %v", event.Err)
			}
			fmt.Println("playback completed")
			goto done
		case chipkit.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if *loop && *loops > 0 && loopCount >= *loops {
				if err := pl.Stop(); err != nil {
					log.Print(err)
				}
			}
		}
	}
done:
	pl.Wait()
	if err := pl.Err(); err != nil {
		log.Fatal(err)
	}
}

func loadSample(path string) (*chipkit.Data, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chipkit.ErrFileNotFound, err)
	}
	defer f.Close()
	return chipkit.ReadWAVSample(f)
}

func render(song *chipkit.Song, path string, sampleRate, channels int, seconds float64) error {
	frames, err := chipkit.Render(song, sampleRate, channels, seconds)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", chipkit.ErrFileNotWritable, err)
	}
	if err := chipkit.WriteWAV(f, frames, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseBackend(name string) (chipkit.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ebiten", "":
		return chipkit.BackendEbiten, nil
	case "oto":
		return chipkit.BackendOto, nil
	default:
		return "", fmt.Errorf("invalid -backend %q (expected ebiten|oto)", name)
	}
}
