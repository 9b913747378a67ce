// Command intnav runs the pose estimator and pure-pursuit controller over a
// stream of landmark observations.
//
//	intnav -path config/example.path.json -replay run.jsonl -db runs.db -plots out/
//	intnav -db runs.db runs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/intnav/internal/config"
	"github.com/banshee-data/intnav/internal/drive"
	"github.com/banshee-data/intnav/internal/estimator"
	"github.com/banshee-data/intnav/internal/loop"
	"github.com/banshee-data/intnav/internal/monitor"
	"github.com/banshee-data/intnav/internal/pathfile"
	"github.com/banshee-data/intnav/internal/pursuit"
	"github.com/banshee-data/intnav/internal/replay"
	"github.com/banshee-data/intnav/internal/storage"
	"github.com/banshee-data/intnav/internal/timeutil"
	"github.com/banshee-data/intnav/internal/version"
)

var (
	configFile = flag.String("config", config.DefaultConfigPath, "Tuning config JSON")
	pathFile   = flag.String("path", "", "Waypoint path JSON (required for run)")
	replayFile = flag.String("replay", "-", "Observation batches as JSON lines; - reads stdin")
	dbFile     = flag.String("db", "", "SQLite run log (empty disables logging)")
	drivePort  = flag.String("port", "", "Serial port of the wheel drive (empty disables the drive)")
	plotDir    = flag.String("plots", "", "Directory for PNG plots written at the end of a run")
	htmlFile   = flag.String("html", "", "HTML report written at the end of a run")
	idle       = flag.Duration("idle", 0, "Predict-only tick interval while no batch arrives (stdin only)")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "", "run":
		err = run(ctx)
	case "runs":
		err = listRuns(ctx, os.Stdout)
	default:
		log.Fatalf("unknown command %q (want run or runs)", cmd)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("intnav: %v", err)
	}
}

func run(ctx context.Context) error {
	if *pathFile == "" {
		return errors.New("-path is required")
	}

	cfg, err := config.LoadTuningConfig(*configFile)
	if err != nil {
		return err
	}
	doc, err := pathfile.Load(*pathFile)
	if err != nil {
		return err
	}

	est, err := estimator.New(estimator.ConfigFromTuning(cfg))
	if err != nil {
		return err
	}
	params := pursuit.ParamsFromTuning(cfg)
	clock := timeutil.RealClock{}

	var sinks []loop.Sink

	rec := monitor.NewRecorder(doc.Waypoints)
	sinks = append(sinks, rec)

	var runLog *storage.RunLog
	if *dbFile != "" {
		db, err := storage.Open(*dbFile)
		if err != nil {
			return fmt.Errorf("failed to open run log: %w", err)
		}
		defer db.Close()
		runLog, err = db.StartRun(ctx, clock.Now(), *replayFile, doc.Waypoints, params)
		if err != nil {
			return err
		}
		log.Printf("logging run %s to %s", runLog.RunID(), *dbFile)
		sinks = append(sinks, runLog)
	}

	if *drivePort != "" {
		port, err := drive.OpenSerial(*drivePort, drive.PortOptionsFromTuning(cfg))
		if err != nil {
			return err
		}
		driver := drive.NewDriver(port)
		defer func() {
			if err := driver.Close(); err != nil {
				log.Printf("failed to close drive: %v", err)
			}
		}()
		sinks = append(sinks, driver)
	}

	l, err := loop.New(est, loop.Config{Params: params, IdleInterval: *idle, Clock: clock}, sinks...)
	if err != nil {
		return err
	}
	if err := l.SetPath(doc.Waypoints); err != nil {
		return err
	}
	log.Printf("following %q: %d waypoints, %.3f m", doc.Name, len(doc.Waypoints), doc.Waypoints.Length())

	runErr := drain(ctx, l, clock)

	if runLog != nil {
		// The signal context may already be cancelled.
		if err := runLog.Finish(context.Background(), clock.Now()); err != nil {
			log.Printf("failed to finish run: %v", err)
		}
	}
	if err := writeReports(rec); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// drain feeds the loop from the replay file, or from stdin through Serve so
// idle ticks keep the estimate moving between batches.
func drain(ctx context.Context, l *loop.Loop, clock timeutil.Clock) error {
	if *replayFile != "-" {
		f, err := replay.OpenFile(*replayFile, clock)
		if err != nil {
			return err
		}
		defer f.Close()
		err = l.Run(ctx, f)
		read, skipped := f.Stats()
		log.Printf("replayed %d batches, skipped %d lines", read, skipped)
		return err
	}

	r := replay.NewReader(os.Stdin, clock)
	ch := make(chan loop.Batch)
	go func() {
		defer close(ch)
		for {
			b, err := r.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					log.Printf("stdin: %v", err)
				}
				return
			}
			select {
			case ch <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return l.Serve(ctx, ch)
}

func writeReports(rec *monitor.Recorder) error {
	if *plotDir != "" {
		err := rec.GeneratePlots(*plotDir)
		if errors.Is(err, monitor.ErrNoSamples) {
			log.Print("no estimates recorded, skipping reports")
			return nil
		}
		if err != nil {
			return fmt.Errorf("plots: %w", err)
		}
		log.Printf("wrote plots to %s", *plotDir)
	}
	if *htmlFile != "" {
		f, err := os.Create(*htmlFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := rec.RenderHTML(f); err != nil {
			return fmt.Errorf("html report: %w", err)
		}
		log.Printf("wrote report to %s", *htmlFile)
	}
	return nil
}

func listRuns(ctx context.Context, w io.Writer) error {
	if *dbFile == "" {
		return errors.New("-db is required")
	}
	db, err := storage.Open(*dbFile)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		ended := "open"
		if !r.EndedAt.IsZero() {
			ended = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		cmds, err := db.Commands(ctx, r.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s  %s  %-8s %4d waypoints  %6d commands  %s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), ended, len(r.Path), len(cmds), r.Source)
	}
	return nil
}
