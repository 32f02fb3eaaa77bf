// Command mp4probe drives pkg/demux against a local file or an HTTP(S)
// URL and prints the media info, video track metadata, and a
// per-sample summary as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"mp4demux/pkg/cache"
	"mp4demux/pkg/dashboard"
	"mp4demux/pkg/demux"
	"mp4demux/pkg/loader"
	"mp4demux/pkg/mp4"
	"mp4demux/pkg/mp4log"
)

const usage = `mp4probe: probe a streaming MP4/AVC source
example: mp4probe ./clip.mp4
example: mp4probe -serve :8088 https://example.com/clip.mp4`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	optsPath := flag.String("options", "", "path to a YAML demux.Options file")
	servAddr := flag.String("serve", "", "address to serve the live debug dashboard on, e.g. :8088")
	cachePath := flag.String("cache", "", "path to a bbolt cache file for resolved metadata")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Println(usage)
		return nil
	}
	source := args[0]

	var opts demux.Options
	if *optsPath != "" {
		var err error
		opts, err = demux.LoadOptions(*optsPath)
		if err != nil {
			return err
		}
	}

	mlog := mp4log.New(os.Stderr)

	var sink demux.Sink = printSink{}
	if *servAddr != "" {
		hub := dashboard.NewHub(sink, mlog)
		sink = hub
		mux := http.NewServeMux()
		mux.Handle("/events", hub.Handler())
		go func() {
			if err := http.ListenAndServe(*servAddr, mux); err != nil {
				mlog.Error().Src("mp4probe").Msgf("dashboard server: %v", err)
			}
		}()
		fmt.Printf("dashboard listening on %s/events\n", *servAddr)
	}

	var cacheDB *cache.DB
	var cacheKey cache.Key
	if *cachePath != "" {
		var err error
		cacheDB, err = cache.Open(*cachePath)
		if err != nil {
			return err
		}
		defer cacheDB.Close()

		cacheKey = cache.Key{URL: source}
		if entry, found, err := cacheDB.Get(cacheKey); err != nil {
			return err
		} else if found {
			fmt.Printf("cache: previously resolved %dx%d %s (cached %s), re-probing anyway\n",
				entry.Width, entry.Height, entry.Codec, entry.CachedAt.Format(time.RFC3339))
		}
	}

	d := demux.New(sink, opts, mlog)

	if loader.IsURL(source) {
		ld := loader.New(source, loader.Options{}, mlog)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := ld.Run(ctx, d); err != nil {
			return err
		}
	} else {
		if err := loader.RunFile(source, d); err != nil {
			return err
		}
	}

	if d.State() == demux.StateError {
		return fmt.Errorf("mp4probe: demux ended in error state")
	}

	if cacheDB != nil {
		if cfg, avcc := d.AVCConfig(); cfg != nil {
			entry := cache.EntryFromConfig(d.FlatTable(), avcc, cfg, time.Now())
			if err := cacheDB.Put(cacheKey, entry); err != nil {
				return err
			}
		}
	}

	return nil
}

// printSink implements demux.Sink by printing each event to stdout.
type printSink struct{}

func (printSink) OnError(kind mp4.ErrorKind, info string) {
	fmt.Printf("error: %s: %s\n", kind, info)
}

func (printSink) OnMediaInfo(info demux.MediaInfo) {
	fmt.Printf("media info: %dx%d @ %.3f fps, codec=%s, brand=%s, duration=%d, audio=%v\n",
		info.Width, info.Height, info.Fps, info.VideoCodec, info.MajorBrand, info.Duration, info.HasAudio)
}

func (printSink) OnTrackMetadata(kind string, meta demux.VideoMeta) {
	fmt.Printf("track metadata [%s]: id=%d profile=%d level=%d %dx%d codec=%s\n",
		kind, meta.TrackID, meta.Profile, meta.Level, meta.CodecWidth, meta.CodecHeight, meta.Codec)
}

func (printSink) OnDataAvailable(audio *demux.AudioTrack, video *demux.VideoTrack) {
	if video == nil {
		return
	}
	for _, sample := range video.Samples {
		keyframeMark := ""
		if sample.IsKeyframe {
			keyframeMark = " [K]"
		}
		fmt.Printf("sample dts=%d pts=%d len=%d nalus=%d%s\n",
			sample.DTS, sample.PTS, sample.Length, len(sample.NALUs), keyframeMark)
	}
}
