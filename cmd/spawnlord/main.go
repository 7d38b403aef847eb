package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rmax-ai/spawnlord/pkg/client"
	"github.com/rmax-ai/spawnlord/pkg/engine"
	"github.com/rmax-ai/spawnlord/pkg/mcp"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const usage = `Usage: spawnlord [-api URL] <command> [args]

Commands:
  status             list schedulers
  enable <id>        open a scheduler's spawn gate
  disable <id>       close a scheduler's spawn gate
  toggle <id>        flip a scheduler's spawn gate
  events [-n N] [-type T] [-scheduler ID]
                     show recent events
  schema             print the world file JSON Schema
  mcp                serve the Model Context Protocol on stdio
  version            print version information
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("spawnlord", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	apiURL := fs.String("api", envOrDefault("SPAWNLORD_API", "http://127.0.0.1:8090"), "daemon base URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(out, usage)
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(out, usage)
		return flag.ErrHelp
	}

	c := client.NewClient(*apiURL)
	cmd, rest := rest[0], rest[1:]
	switch cmd {
	case "status":
		return status(ctx, c, out)
	case "enable", "disable", "toggle":
		if len(rest) != 1 {
			return fmt.Errorf("%s requires a scheduler id", cmd)
		}
		return gate(ctx, c, out, cmd, rest[0])
	case "events":
		return events(ctx, c, out, rest)
	case "schema":
		schema, err := engine.WorldSchema()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	case "mcp":
		return mcp.NewServer(*apiURL).Serve()
	case "version":
		fmt.Fprintf(out, "spawnlord %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		return nil
	}
	fmt.Fprint(out, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func status(ctx context.Context, c *client.Client, out io.Writer) error {
	schedulers, err := c.ListSchedulers(ctx)
	if err != nil {
		return fmt.Errorf("is spawnlord-d running? %w", err)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGATE\tELAPSED\tBOUNDS\tMILESTONES\tSPAWNED\tDROPPED")
	for _, s := range schedulers {
		gate := "open"
		switch {
		case s.BindErr != "":
			gate = "inert"
		case !s.State.SpawningEnabled:
			gate = "closed"
		}
		fired := 0
		for _, m := range s.State.Milestones {
			if m.Fired {
				fired++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s-%s\t%d/%d\t%d\t%d\n",
			s.ID, gate,
			s.State.Elapsed.Round(100*time.Millisecond),
			s.State.Bounds.Min.Round(time.Millisecond), s.State.Bounds.Max.Round(time.Millisecond),
			fired, len(s.State.Milestones),
			s.Counters.EntitiesSpawned, s.Counters.SlotsDropped)
	}
	return tw.Flush()
}

func gate(ctx context.Context, c *client.Client, out io.Writer, cmd, id string) error {
	var (
		enabled bool
		err     error
	)
	switch cmd {
	case "enable":
		enabled, err = true, c.SetSpawning(ctx, id, true, "cli")
	case "disable":
		enabled, err = false, c.SetSpawning(ctx, id, false, "cli")
	default:
		enabled, err = c.Toggle(ctx, id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: spawning_enabled=%t\n", id, enabled)
	return nil
}

func events(ctx context.Context, c *client.Client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("n", 20, "number of events")
	typ := fs.String("type", "", "event type filter")
	scheduler := fs.String("scheduler", "", "scheduler id filter")
	if err := fs.Parse(args); err != nil {
		return err
	}

	evts, err := c.GetEvents(ctx, client.EventsOptions{Limit: *limit, Type: *typ, SchedulerID: *scheduler})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tSCHEDULER\tTIER\tPAYLOAD")
	for _, e := range evts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.TsEvent.Local().Format(time.TimeOnly), e.EventType, e.Dimensions.SchedulerID, e.Dimensions.Tier, string(e.Payload))
	}
	return tw.Flush()
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
