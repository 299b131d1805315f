package cli

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dispatch-network/dispatch/internal/domain"
	"github.com/dispatch-network/dispatch/internal/perf"
	"github.com/dispatch-network/dispatch/internal/provider"
	"github.com/dispatch-network/dispatch/internal/selection"
)

// csvHeader is the expected input header. One row per candidate.
const csvHeader = "address,fee_usd,seconds_behind,latency_ms,success_rate,slashable_usd,zero_allocation"

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Float64("budget", 20e-6, "Query budget in USD (fees become fractions of this)")
	simulateCmd.Flags().Int("limit", 3, "Maximum providers to select")
	simulateCmd.Flags().Int64("seed", 0, "Feedback sampling seed (0 = fixed default)")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one selection round over CSV provider characteristics",
	Long: `Read provider characteristics as CSV from standard input, replay
synthetic feedback through a performance tracker per provider, run the
selector, and print the selected set.

Expected header:

  ` + csvHeader,
	RunE: runSimulate,
}

// characteristics is one parsed CSV row.
type characteristics struct {
	address        string
	feeUSD         float64
	secondsBehind  uint32
	latencyMS      uint16
	successRate    domain.Normalized
	slashableUSD   uint64
	zeroAllocation bool
}

func runSimulate(cmd *cobra.Command, args []string) error {
	budget, _ := cmd.Flags().GetFloat64("budget")
	limit, _ := cmd.Flags().GetInt("limit")
	seed, _ := cmd.Flags().GetInt64("seed")
	if budget <= 0 {
		return fmt.Errorf("budget must be positive, got %g", budget)
	}
	if limit < 1 {
		return fmt.Errorf("limit must be >= 1, got %d", limit)
	}

	rows, err := parseCharacteristics(os.Stdin)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return domain.ErrNoCandidates
	}

	rng := rand.New(rand.NewSource(seed))
	candidates := buildCandidates(rows, budget, rng)

	selected := selection.Select(candidates, limit)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d candidates, limit %d\n\n", len(candidates), limit)
	fmt.Fprintf(out, "%-14s %-10s %-12s %-10s %-10s\n",
		"address", "score", "success", "latency", "fee")
	for i, c := range candidates {
		marker := " "
		for _, s := range selected {
			if s.ID() == c.ID() {
				marker = "*"
			}
		}
		fmt.Fprintf(out, "%s %-12s %-10.4g %-12.4f %-10d %-10.4g\n",
			marker, rows[i].address,
			c.Score().Float64(),
			c.Perf.SuccessRate.Float64(),
			c.Perf.LatencyMS,
			c.FeeFraction.Float64(),
		)
	}
	if len(selected) > 1 {
		combined := selected[0].ScoreMany(selected)
		fmt.Fprintf(out, "\ncombined score of selection: %.4g\n", combined.Float64())
	}
	return nil
}

// parseCharacteristics reads CSV rows, skipping the header when present.
func parseCharacteristics(r io.Reader) ([]characteristics, error) {
	var rows []characteristics
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "address,") {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: expected 7 fields, got %d", line, len(fields))
		}
		row, err := parseRow(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, scanner.Err()
}

func parseRow(fields []string) (characteristics, error) {
	var row characteristics
	row.address = strings.TrimSpace(fields[0])

	feeUSD, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return row, fmt.Errorf("fee_usd: %w", err)
	}
	row.feeUSD = feeUSD

	secondsBehind, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return row, fmt.Errorf("seconds_behind: %w", err)
	}
	row.secondsBehind = uint32(secondsBehind)

	latencyMS, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return row, fmt.Errorf("latency_ms: %w", err)
	}
	row.latencyMS = uint16(latencyMS)

	successRate, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return row, fmt.Errorf("success_rate: %w", err)
	}
	row.successRate, err = domain.NewNormalized(successRate)
	if err != nil {
		return row, fmt.Errorf("success_rate: %w", err)
	}

	slashableUSD, err := strconv.ParseUint(fields[5], 10, 64)
	if err != nil {
		return row, fmt.Errorf("slashable_usd: %w", err)
	}
	row.slashableUSD = slashableUSD

	zeroAllocation, err := strconv.ParseBool(fields[6])
	if err != nil {
		return row, fmt.Errorf("zero_allocation: %w", err)
	}
	row.zeroAllocation = zeroAllocation

	return row, nil
}

// buildCandidates replays synthetic feedback matching each row's advertised
// success rate and latency, then snapshots the tracker into a candidate.
func buildCandidates(rows []characteristics, budget float64, rng *rand.Rand) []*provider.Candidate {
	candidates := make([]*provider.Candidate, len(rows))
	for i, row := range rows {
		tracker := perf.NewTracker()
		for j := 0; j < 1000; j++ {
			tracker.Feedback(rng.Float64() < row.successRate.Float64(), row.latencyMS)
		}

		fee, err := domain.NewNormalized(row.feeUSD / budget)
		if err != nil {
			// A fee above the whole budget counts as the whole budget: such a
			// candidate can only be combined with zero-fee candidates.
			fee = domain.NormalizedOne
		}
		candidates[i] = &provider.Candidate{
			Provider:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(row.address)),
			Deployment:     row.address,
			FeeFraction:    fee,
			SecondsBehind:  row.secondsBehind,
			SlashableStake: row.slashableUSD,
			ZeroAllocation: row.zeroAllocation,
			Perf:           tracker.ExpectedPerformance(),
		}
	}
	return candidates
}
