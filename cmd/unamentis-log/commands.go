package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/unamentis/unamentis-go/pkg/log"
)

// parseFilterFlags registers the shared filter flags on fs and returns a
// builder that assembles the log.Filter after parsing.
func parseFilterFlags(fs *flag.FlagSet) func() (log.Filter, error) {
	attempt := fs.String("attempt", "", "Filter by attempt ID")
	category := fs.String("category", "", "Filter by category (e.g. VALIDATION, STATE_CHANGE)")
	tier := fs.String("tier", "", "Filter by tier (cached, bonjour, subnet_scan)")
	host := fs.String("host", "", "Filter by candidate host")

	return func() (log.Filter, error) {
		f := log.Filter{
			AttemptID: *attempt,
			Tier:      *tier,
			Host:      *host,
		}
		if *category != "" {
			c, err := categoryByName(*category)
			if err != nil {
				return log.Filter{}, err
			}
			f.Category = &c
		}
		return f, nil
	}
}

func categoryByName(name string) (log.Category, error) {
	for c := log.CategoryAttemptStart; c <= log.CategoryError; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// openReader parses flags, builds the filter, and opens the log file
// given as the remaining positional argument.
func openReader(fs *flag.FlagSet, args []string, build func() (log.Filter, error)) (*log.Reader, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("expected exactly one log file argument")
	}
	filter, err := build()
	if err != nil {
		return nil, err
	}
	return log.NewFilteredReader(fs.Arg(0), filter)
}

func runView(args []string) error {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	build := parseFilterFlags(fs)

	reader, err := openReader(fs, args, build)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		formatEvent(os.Stdout, event)
	}
}

// formatEvent writes a one-line human-readable representation of the event.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	fmt.Fprintf(w, "%s [%s] %-12s", ts, shortenAttemptID(event.AttemptID), event.Category)

	if event.Tier != "" {
		fmt.Fprintf(w, " tier=%s", event.Tier)
	}
	if event.Host != "" {
		fmt.Fprintf(w, " server=%s:%d", event.Host, event.Port)
	}
	if event.Method != "" {
		fmt.Fprintf(w, " method=%s", event.Method)
	}
	if event.NewState != "" {
		if event.OldState != "" {
			fmt.Fprintf(w, " %s -> %s", event.OldState, event.NewState)
		} else {
			fmt.Fprintf(w, " state=%s", event.NewState)
		}
	}
	if event.Elapsed != 0 {
		fmt.Fprintf(w, " elapsed=%s", event.Elapsed.Round(time.Microsecond))
	}
	if event.Error != "" {
		fmt.Fprintf(w, " error=%q", event.Error)
	}
	fmt.Fprintln(w)
}

// shortenAttemptID returns the first 8 characters of the attempt ID.
func shortenAttemptID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// jsonEvent is the JSONL export shape.
type jsonEvent struct {
	Timestamp time.Time `json:"timestamp"`
	AttemptID string    `json:"attempt_id"`
	Category  string    `json:"category"`
	Tier      string    `json:"tier,omitempty"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Method    string    `json:"method,omitempty"`
	OldState  string    `json:"old_state,omitempty"`
	NewState  string    `json:"new_state,omitempty"`
	Error     string    `json:"error,omitempty"`
	ElapsedMS float64   `json:"elapsed_ms,omitempty"`
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	build := parseFilterFlags(fs)

	reader, err := openReader(fs, args, build)
	if err != nil {
		return err
	}
	defer reader.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(jsonEvent{
			Timestamp: event.Timestamp,
			AttemptID: event.AttemptID,
			Category:  event.Category.String(),
			Tier:      event.Tier,
			Host:      event.Host,
			Port:      event.Port,
			Method:    event.Method,
			OldState:  event.OldState,
			NewState:  event.NewState,
			Error:     event.Error,
			ElapsedMS: float64(event.Elapsed) / float64(time.Millisecond),
		}); err != nil {
			return err
		}
	}
}

// attemptStats accumulates per-attempt counters for the stats command.
type attemptStats struct {
	first      time.Time
	last       time.Time
	events     int
	candidates int
	rejections int
	finalState string
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	build := parseFilterFlags(fs)

	reader, err := openReader(fs, args, build)
	if err != nil {
		return err
	}
	defer reader.Close()

	attempts := make(map[string]*attemptStats)
	var order []string
	total := 0

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total++

		s := attempts[event.AttemptID]
		if s == nil {
			s = &attemptStats{first: event.Timestamp}
			attempts[event.AttemptID] = s
			order = append(order, event.AttemptID)
		}
		s.events++
		s.last = event.Timestamp

		switch event.Category {
		case log.CategoryCandidate:
			s.candidates++
		case log.CategoryValidation:
			if event.Error != "" {
				s.rejections++
			}
		case log.CategoryAttemptEnd:
			s.finalState = event.NewState
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return attempts[order[i]].first.Before(attempts[order[j]].first)
	})

	fmt.Printf("Events:   %d\n", total)
	fmt.Printf("Attempts: %d\n\n", len(order))
	for _, id := range order {
		s := attempts[id]
		fmt.Printf("%s  events=%-4d candidates=%-3d rejected=%-3d duration=%-12s",
			shortenAttemptID(id), s.events, s.candidates, s.rejections,
			s.last.Sub(s.first).Round(time.Millisecond))
		if s.finalState != "" {
			fmt.Printf(" final=%s", s.finalState)
		}
		fmt.Println()
	}
	return nil
}
