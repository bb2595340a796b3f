package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"mdingest/internal/model"
	"mdingest/internal/model/enum"
	"mdingest/internal/recorder"
	"mdingest/internal/tz"
)

func main() {
	dir := flag.String("dir", "data", "batch directory")
	prefix := flag.String("prefix", "", "batch file prefix (default: consol_feeds)")
	kind := flag.String("type", "", "event type filter: trade|quote|ref_px")
	file := flag.String("file", "", "print the records of one batch file instead of listing")
	rows := flag.Bool("rows", false, "replay records of every listed batch in flush order")
	zone := flag.String("tz", "", "zone to print event times in (default: America/New_York)")
	flag.Parse()

	loc, err := tz.Load(*zone)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var eventType enum.EventType
	if *kind != "" {
		t, ok := enum.ParseEventType(*kind)
		if !ok {
			log.Fatalf("unknown event type: %s", *kind)
		}
		eventType = t
	}

	filePrefix := *prefix
	if filePrefix == "" {
		filePrefix = recorder.DefaultConfig("").FilePrefix
	}

	if *file != "" {
		t, ok := recorder.EventTypeOf(filePrefix, *file)
		if !ok {
			if !eventType.IsAvailable() {
				log.Fatalf("cannot tell the event type of %s; use -type", *file)
			}
			t = eventType
		}
		events, err := recorder.ReadBatch(*file, t)
		if err != nil {
			log.Fatalf("read batch failed: %v", err)
		}
		printBatch(*file, t, events, loc)
		return
	}

	if *rows {
		playback, err := recorder.NewPlayback(recorder.PlaybackConfig{
			Dir:        *dir,
			FilePrefix: filePrefix,
			EventType:  eventType,
			Location:   loc,
		})
		if err != nil {
			log.Fatalf("create playback failed: %v", err)
		}
		err = playback.Run(context.Background(), func(path string, t enum.EventType, events []*model.MarketEvent) error {
			printBatch(path, t, events, nil)
			return nil
		})
		if err != nil {
			log.Fatalf("playback failed: %v", err)
		}
		return
	}

	paths, err := recorder.ListBatches(*dir, filePrefix, eventType)
	if err != nil {
		log.Fatalf("list batches failed: %v", err)
	}
	for i, path := range paths {
		t, _ := recorder.EventTypeOf(filePrefix, path)
		fmt.Printf("%06d type=%s file=%s\n", i+1, t, filepath.Base(path))
	}
}

// printBatch prints one batch. A non-nil loc converts event times first.
func printBatch(path string, t enum.EventType, events []*model.MarketEvent, loc *time.Location) {
	if loc != nil {
		for _, e := range events {
			e.EventTime = e.EventTime.In(loc)
		}
	}
	first, last := model.EventTimeRange(events)
	fmt.Printf("%s type=%s records=%d first=%s last=%s\n", filepath.Base(path), t, len(events), first.Format(timeLayout), last.Format(timeLayout))
	for i, e := range events {
		fmt.Printf("  %06d %s\n", i+1, describe(e))
	}
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func describe(e *model.MarketEvent) string {
	head := fmt.Sprintf("%s %s %s src=%s", e.EventTime.Format(timeLayout), e.AssetType, e.Symbol, e.Source)
	switch e.EventType {
	case enum.EventTypeTrade:
		return fmt.Sprintf("%s price=%s size=%s venue=%s", head, e.LastPrice, e.LastSize, e.Venue)
	case enum.EventTypeQuote:
		return fmt.Sprintf("%s bid=%s/%s mid=%s ask=%s/%s", head, e.Bid, e.BidSize, e.Mid, e.Ask, e.AskSize)
	case enum.EventTypeRefPx:
		return fmt.Sprintf("%s price=%s", head, e.Price)
	default:
		return head
	}
}
