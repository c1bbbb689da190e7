// Command highlight runs Tesseract on local page images and resolves one
// extracted value against the result, printing the highlight as JSON.
//
//	highlight -query "Invoice Total" -prompt total page1.png page2.png
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/highlight"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr/tesseract"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/pageindex"
)

func main() {
	var (
		query    = flag.String("query", "", "extracted value to locate")
		promptID = flag.String("prompt", "cli", "prompt id to tag the highlight with")
		key      = flag.String("key", "", "optional field key")
		langs    = flag.String("lang", "eng", "comma-separated tesseract languages")
		timeout  = flag.Duration("timeout", 2*time.Minute, "overall OCR timeout")
		verbose  = flag.Bool("v", false, "log the selected tier to stderr")
	)
	flag.Parse()

	logging.SetOutput(os.Stderr)
	if *verbose {
		logging.SetLevel("debug")
	}
	log := logging.NewLogger("HighlightCLI")

	if *query == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: highlight -query VALUE [-prompt ID] [-key KEY] PAGE_IMAGE...")
		os.Exit(2)
	}

	images := make([][]byte, 0, flag.NArg())
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("failed to read page image", "path", path, "error", err)
			os.Exit(1)
		}
		images = append(images, data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	recognizer := tesseract.NewRecognizer(strings.Split(*langs, ",")...)
	blocks, err := recognizer.RecognizePages(ctx, images)
	if err != nil {
		log.Error("OCR failed", "error", err)
		os.Exit(1)
	}

	idx := pageindex.Build(blocks)
	info, tier := highlight.ResolveWithTier(idx, *query, highlight.Provenance{PromptID: *promptID, Key: *key})
	log.Debug("resolved", "tier", tier, "blocks", len(info.Blocks))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(info); err != nil {
		log.Error("failed to write highlight", "error", err)
		os.Exit(1)
	}
}
