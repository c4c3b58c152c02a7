// Command slew_analysis reports slew speeds from a PWI telemetry CSV.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/w1xm/slew_interface/analysis"
)

var (
	input = flag.String("input", "Telemetry.csv", "telemetry CSV file")
	start = flag.String("start", "", "window start, RFC3339 (default: first sample)")
	end   = flag.String("end", "", "window end, RFC3339 (default: last sample)")
)

func parseBound(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func rate(r analysis.Rate) string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.4f deg/sec", r.Value)
}

func main() {
	flag.Parse()
	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("opening %q: %v", *input, err)
	}
	samples, err := analysis.ReadTelemetry(f)
	f.Close()
	if err != nil {
		log.Fatalf("reading %q: %v", *input, err)
	}
	if len(samples) == 0 {
		log.Fatalf("%q: %v", *input, analysis.ErrNoSamples)
	}

	from, err := parseBound(*start, samples[0].ObservedAt)
	if err != nil {
		log.Fatalf("parsing -start: %v", err)
	}
	to, err := parseBound(*end, samples[len(samples)-1].ObservedAt)
	if err != nil {
		log.Fatalf("parsing -end: %v", err)
	}

	r, err := analysis.Analyze(analysis.Window(samples, from, to))
	if err != nil {
		log.Fatalf("analyzing %v to %v: %v", from, to, err)
	}

	fmt.Printf("Start Position: %s  Altitude %.4f deg  Azimuth %.4f deg\n", r.Start.ObservedAt.Format(time.RFC3339Nano), r.Start.Altitude, r.Start.Azimuth)
	fmt.Printf("End Position:   %s  Altitude %.4f deg  Azimuth %.4f deg\n", r.End.ObservedAt.Format(time.RFC3339Nano), r.End.Altitude, r.End.Azimuth)
	fmt.Println()
	fmt.Println("========== SLEW ANALYSIS ==========")
	fmt.Printf("Total Time Taken     : %.2f sec\n", r.Elapsed.Seconds())
	fmt.Printf("Altitude Moved       : %.4f deg\n", r.AltitudeMoved)
	fmt.Printf("Azimuth Moved        : %.4f deg\n", r.AzimuthMoved)
	fmt.Printf("Distance             : %.4f deg\n", r.Distance)
	fmt.Printf("Average Speed        : %.4f deg/sec\n", r.AverageSpeed)
	fmt.Printf("Average Alt Speed    : %.4f deg/sec\n", r.AverageAltitudeSpeed)
	fmt.Printf("Average Az Speed     : %.4f deg/sec\n", r.AverageAzimuthSpeed)
	fmt.Printf("Maximum Alt Speed    : %s\n", rate(r.MaxAltitudeSpeed))
	fmt.Printf("Maximum Az Speed     : %s\n", rate(r.MaxAzimuthSpeed))
}
