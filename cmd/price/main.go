// Command price prices a single European option, or sweeps a price surface and
// prints it as a table or writes it as a PNG heatmap.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/jwaldner/bsheat/internal/blackscholes"
	"github.com/jwaldner/bsheat/internal/heatmap"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	fs.SetOutput(out)

	q := blackscholes.Quote{Type: blackscholes.Call}
	fs.Float64Var(&q.Spot, "spot", 100, "current price of the underlying")
	fs.Float64Var(&q.Strike, "strike", 100, "strike price")
	fs.Float64Var(&q.Expiry, "expiry", 1, "time to expiry in years")
	fs.Float64Var(&q.Rate, "rate", 0.05, "risk-free rate, continuously compounded")
	fs.Float64Var(&q.Vol, "vol", 0.2, "annualised volatility")
	fs.TextVar(&q.Type, "type", blackscholes.Call, "option type: call or put")

	surface := fs.Bool("surface", false, "sweep spot and volatility instead of pricing one option")
	resolution := fs.Int("res", blackscholes.DefaultResolution, "samples per surface axis")
	volMin := fs.Float64("vol-min", blackscholes.DefaultVolRange.Low, "lowest volatility of the sweep")
	volMax := fs.Float64("vol-max", blackscholes.DefaultVolRange.High, "highest volatility of the sweep")
	spotMin := fs.Float64("spot-min", blackscholes.DefaultSpotRange.Low, "lowest spot of the sweep")
	spotMax := fs.Float64("spot-max", blackscholes.DefaultSpotRange.High, "highest spot of the sweep")
	pngPath := fs.String("png", "", "write the surface heatmap to this file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*surface && *pngPath == "" {
		price, err := q.Price()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s price: %s\n", q.Type.Title(), decimal.NewFromFloat(price).StringFixed(4))
		return nil
	}

	s, err := blackscholes.BuildSurface(q,
		blackscholes.Range{Low: *volMin, High: *volMax},
		blackscholes.Range{Low: *spotMin, High: *spotMax},
		*resolution)
	if err != nil {
		return err
	}

	if *pngPath != "" {
		return writePNG(*pngPath, s)
	}
	return writeTable(out, s)
}

func writePNG(path string, s *blackscholes.Surface) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := heatmap.Render(f, s, heatmap.DefaultOptions()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeTable prints one row per spot and one column per volatility
func writeTable(out io.Writer, s *blackscholes.Surface) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "spot\\vol\t")
	for _, v := range s.Vols {
		fmt.Fprintf(tw, "%s\t", decimal.NewFromFloat(v).StringFixed(3))
	}
	fmt.Fprintln(tw)
	for i, spot := range s.Spots {
		fmt.Fprintf(tw, "%s\t", decimal.NewFromFloat(spot).StringFixed(2))
		for j := range s.Vols {
			fmt.Fprintf(tw, "%s\t", decimal.NewFromFloat(s.At(i, j)).StringFixed(2))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
