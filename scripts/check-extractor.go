package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/denisAlshanov/mediafetch/internal/config"
	"github.com/denisAlshanov/mediafetch/internal/services/extractor"
	"github.com/denisAlshanov/mediafetch/internal/services/ffmpeg"
	"github.com/denisAlshanov/mediafetch/internal/services/youtube"
	"github.com/denisAlshanov/mediafetch/internal/services/ytdlp"
)

func main() {
	fmt.Println("Extractor Check")
	fmt.Println("===============")

	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <video url>", os.Args[0])
	}
	url := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	transcoder := ffmpeg.NewTranscoder(cfg.Extractor.FFmpegPath)
	if path, err := transcoder.Lookup(); err != nil {
		fmt.Printf("ffmpeg: not available (%v)\n", err)
		fmt.Println("Merged formats and mp3 extraction will fail on this host")
	} else {
		fmt.Printf("ffmpeg: %s\n", path)
	}

	var ex extractor.Extractor
	switch cfg.Extractor.Backend {
	case config.BackendYouTube:
		ex = youtube.NewClient(transcoder)
	default:
		client := ytdlp.NewClient(ytdlp.Options{
			Binary:      cfg.Extractor.YtDlpPath,
			CookiesFile: cfg.Extractor.CookiesFile,
		})
		path, err := client.Lookup()
		if err != nil {
			log.Fatalf("yt-dlp lookup failed: %v", err)
		}
		fmt.Printf("yt-dlp: %s\n", path)
		ex = client
	}
	fmt.Printf("Backend: %s\n", ex.Name())
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("Fetching metadata...")
	info, err := ex.ExtractInfo(ctx, url)
	if err != nil {
		log.Fatalf("Metadata lookup failed: %v", err)
	}

	fmt.Printf("Title: %s\n", info.Title)
	fmt.Printf("Thumbnail: %s\n", info.Thumbnail)
	fmt.Printf("%-10s %-6s %-12s %-14s %-12s %s\n", "FORMAT", "EXT", "RESOLUTION", "NOTE", "VCODEC", "ACODEC")
	for _, f := range info.Formats {
		fmt.Printf("%-10s %-6s %-12s %-14s %-12s %s\n", f.FormatID, f.Ext, f.Resolution, f.FormatNote, f.VCodec, f.ACodec)
	}
}
