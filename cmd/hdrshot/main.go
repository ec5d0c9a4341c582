package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/lxn/win"

	"github.com/jipaix/hdrshot/capture"
	"github.com/jipaix/hdrshot/internal/config"
	"github.com/jipaix/hdrshot/internal/logging"
	"github.com/jipaix/hdrshot/pipeline"
	"github.com/jipaix/hdrshot/target"
)

const version = "0.1"

func main() {
	monitorFlag := flag.Int("monitor", -1, "Capture the Nth enumerated monitor")
	pidFlag := flag.Uint64("pid", 0, "Capture the top window of this process id")
	processFlag := flag.String("process", "", "Capture the top window of this process name")
	hwndFlag := flag.Uint64("hwnd", 0, "Capture this exact window handle")
	indexFlag := flag.Int("index", -1, "Disambiguate among ranked window candidates (-1 = top ranked)")
	headlessFlag := flag.Bool("headless", false, "Crop the captured window to its client area")
	modeFlag := flag.String("mode", "auto", "Dynamic-range mode: auto, hdr, or sdr")
	latestFlag := flag.Bool("latest", false, "Use the Latest acquisition discipline instead of Fresh")
	outFlag := flag.String("out", "frame.raw", "Output path for the raw captured pixel buffer")
	helpFlag := flag.Bool("help", false, "Show help message")
	versionFlag := flag.Bool("version", false, "Show version")

	flag.Usage = printHelp
	flag.Parse()

	if *helpFlag || len(os.Args) == 1 {
		printHelp()
		return
	}
	if *versionFlag {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, nil)

	if err := run(*monitorFlag, *pidFlag, *processFlag, *hwndFlag, *indexFlag, *headlessFlag, *modeFlag, *latestFlag, *outFlag, cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(monitor int, pid uint64, process string, hwnd uint64, index int, headless bool, modeStr string, latest bool, out string, cfg config.Config) error {
	resolver, err := target.NewResolver()
	if err != nil {
		return fmt.Errorf("resolver: %w", err)
	}

	tgt, err := resolveTarget(resolver, monitor, pid, process, hwnd, index, headless)
	if err != nil {
		return fmt.Errorf("resolving target: %w", err)
	}

	mode, err := parseMode(modeStr)
	if err != nil {
		return err
	}

	p, err := pipeline.ForTarget(tgt, mode, cfg)
	if err != nil {
		return fmt.Errorf("opening pipeline: %w", err)
	}
	defer p.Close()

	var frame *pipeline.CapturedFrame
	if latest {
		frame, err = p.Grab()
	} else {
		frame, err = p.Capture()
	}
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	if err := os.WriteFile(out, frame.Pixels, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Printf("wrote %s: %dx%d %s (%d bytes)\n", out, frame.Width, frame.Height, frame.Format, len(frame.Pixels))
	return nil
}

func resolveTarget(resolver *target.Resolver, monitor int, pid uint64, process string, hwnd uint64, index int, headless bool) (target.CaptureTarget, error) {
	if monitor >= 0 {
		return resolver.ResolveMonitor(monitor)
	}
	if hwnd != 0 || pid != 0 || process != "" {
		return resolver.ResolveWindow(target.WindowSelector{
			HWND:        win.HWND(hwnd),
			PID:         uint32(pid),
			ProcessName: process,
			Index:       index,
			Headless:    headless,
		})
	}
	return resolver.ResolveMonitor(0)
}

func parseMode(s string) (capture.Mode, error) {
	switch s {
	case "", "auto":
		return capture.ModeAuto, nil
	case "hdr":
		return capture.ModeHDR, nil
	case "sdr":
		return capture.ModeSDR, nil
	default:
		return capture.ModeAuto, fmt.Errorf("invalid mode: %s (must be 'auto', 'hdr', or 'sdr')", s)
	}
}

func printHelp() {
	fmt.Println("Usage: hdrshot [--monitor N | --hwnd H | --pid P | --process NAME] [--mode auto|hdr|sdr] [--out path]")
	fmt.Println()
	fmt.Println("Options:")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  --monitor <N>\tCapture the Nth enumerated monitor")
	fmt.Fprintln(w, "  --hwnd <handle>\tCapture this exact window handle")
	fmt.Fprintln(w, "  --pid <id>\tCapture the top window of this process id")
	fmt.Fprintln(w, "  --process <name>\tCapture the top window of this process name")
	fmt.Fprintln(w, "  --index <N>\tDisambiguate among ranked window candidates")
	fmt.Fprintln(w, "  --headless\tCrop the captured window to its client area")
	fmt.Fprintln(w, "  --mode auto|hdr|sdr\tDynamic-range mode")
	fmt.Fprintln(w, "  --latest\tUse the Latest acquisition discipline instead of Fresh")
	fmt.Fprintln(w, "  --out <path>\tOutput path for the raw pixel buffer")
	fmt.Fprintln(w, "  --help\tShow help")
	fmt.Fprintln(w, "  --version\tShow version")
	w.Flush()
}
