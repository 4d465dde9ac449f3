package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/patchvm/patchvm/config"
	"github.com/patchvm/patchvm/exec"
	"github.com/patchvm/patchvm/link"
	"github.com/patchvm/patchvm/monitor"
)

func main() {
	var source string
	var entry string
	var watch bool
	var console bool
	var verbose bool

	flag.StringVar(&source, "f", "", ".pvm graph source file")
	flag.StringVar(&entry, "r", "", "Label to execute")
	flag.BoolVar(&watch, "w", false, "Watch the source file and hot-swap on change")
	flag.BoolVar(&console, "m", false, "Interactive console")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	cfg, err := config.Find(".")
	if err != nil {
		log.Fatalf("%v: %v", config.FileName, err)
	}
	verbose = verbose || cfg.Verbose
	watch = watch || cfg.Watch.Enabled
	if entry == "" {
		entry = cfg.Watch.Entry
	}

	capacity := int(cfg.Buffer.Capacity)

	exits := make(chan link.Point, 16)
	ctl, err := exec.NewController(capacity, func(pt link.Point) {
		exits <- pt
	})
	if err != nil {
		log.Fatalf("controller: %v", err)
	}
	defer ctl.Close()
	ctl.Verbose = verbose

	ses := monitor.NewSession(ctl, capacity)

	if source != "" {
		if err := ses.Load(source); err != nil {
			log.Fatalf("%v: %v", source, err)
		}
	}

	if console {
		go func() {
			for pt := range exits {
				ses.PrintExit(pt)
			}
		}()
		if err := ses.Repl(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if source == "" {
		log.Fatalf("%v: no source file, use -f or -m", os.Args[0])
	}

	if entry != "" {
		if err := ses.Start(entry); err != nil {
			log.Fatalf("%v: %v", entry, err)
		}
	}

	if watch {
		watchLoop(ses, source, exits)
		return
	}

	if entry != "" {
		pt := <-exits
		ses.PrintExit(pt)
	}
}

// watchLoop reinstalls the source file on every change, preserving the
// running worker's position, until interrupted.
func watchLoop(ses *monitor.Session, source string, exits chan link.Point) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("watch: %v", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files rather than
	// rewriting them in place.
	dir := filepath.Dir(source)
	if err := watcher.Add(dir); err != nil {
		log.Fatalf("watch %v: %v", dir, err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	base := filepath.Base(source)
	for {
		select {
		case <-stop:
			return
		case err := <-watcher.Errors:
			log.Printf("watch: %v", err)
		case pt := <-exits:
			ses.PrintExit(pt)
		case event := <-watcher.Events:
			if filepath.Base(event.Name) != base {
				continue
			}

			// Flush the burst of events a single save produces.
			for flushed := false; !flushed; {
				time.Sleep(10 * time.Millisecond)
				select {
				case <-watcher.Events:
				default:
					flushed = true
				}
			}

			if err := ses.Load(source); err != nil {
				// Keep the old code running.
				log.Printf("%v: %v", source, err)
				continue
			}
			log.Printf("%v: reinstalled", source)
		}
	}
}
