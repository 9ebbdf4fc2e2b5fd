package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bryan-buckman/tripahead/internal/client"
	"github.com/bryan-buckman/tripahead/internal/model"
	"github.com/bryan-buckman/tripahead/internal/planner"
	"github.com/spf13/cobra"
)

var (
	flagTrip  int64
	flagLocal bool
	flagJSON  bool
	flagIndex int
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan a trip: move activities between the backlog and days",
	Long: `Each plan command loads the trip, applies one change the same way the
planner UI would (optimistically, then persisted), and prints the outcome.`,
}

func init() {
	pf := planCmd.PersistentFlags()
	pf.Int64Var(&flagTrip, "trip", 0, "trip id")
	pf.BoolVar(&flagLocal, "local", false, "talk to the database directly instead of the API")
	pf.String("api-url", defaultAPIURL, "API base URL")
	planCmd.MarkPersistentFlagRequired("trip")

	planShowCmd.Flags().BoolVar(&flagJSON, "json", false, "output as JSON")
	planMoveCmd.Flags().IntVar(&flagIndex, "index", -1, "position in the destination list (default: end)")
	for _, c := range []*cobra.Command{planAddCmd, planEditCmd} {
		f := c.Flags()
		f.String("title", "", "title")
		f.String("description", "", "description")
		f.String("address", "", "address")
		f.Float64("price", 0, "price")
		f.StringSlice("tags", nil, "comma-separated tags")
		f.Float64("rating", 0, "rating from 0 to 5")
		f.String("image-url", "", "image URL")
	}
	planAddCmd.Flags().Int("day", 0, "place on this day instead of the backlog")
	planEditCmd.Flags().Bool("clear-price", false, "remove the price")

	planCmd.AddCommand(planShowCmd, planMoveCmd, planAddDayCmd, planRemoveDayCmd, planRenameDayCmd,
		planAddCmd, planEditCmd, planDeleteCmd, planSearchCmd)
}

// withPlanner loads a planner for --trip, runs fn and closes everything.
func withPlanner(cmd *cobra.Command, fn func(p *planner.Planner) error) error {
	var backend planner.Backend
	if flagLocal {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		backend = planner.StoreBackend{Store: store}
	} else {
		backend = client.New(cfg.GetString(cfgKeyAPIURL), client.WithLogger(logger))
	}

	p := planner.New(flagTrip, backend,
		planner.WithLogger(logger),
		planner.WithMaxDays(cfg.GetInt(cfgKeyMaxDays)))
	defer p.Close()
	if err := p.Load(cmd.Context()); err != nil {
		return fmt.Errorf("load trip %d: %w", flagTrip, err)
	}
	return fn(p)
}

// apply waits for a planner command and prints the board afterwards.
func apply(cmd *cobra.Command, p *planner.Planner, c *planner.Command, err error) error {
	if err != nil {
		return err
	}
	if c != nil {
		if err := c.Wait(cmd.Context()); err != nil {
			return err
		}
	}
	printBoard(cmd.OutOrStdout(), p.Board())
	return nil
}

func intArg(s, what string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return n, nil
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the backlog and every day",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPlanner(cmd, func(p *planner.Planner) error {
			if flagJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p.Board())
			}
			printBoard(cmd.OutOrStdout(), p.Board())
			return nil
		})
	},
}

var planMoveCmd = &cobra.Command{
	Use:   "move <activity-id> <backlog|day-N>",
	Short: "Move an activity to the backlog or a day",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "activity id")
		if err != nil {
			return err
		}
		dest, err := planner.ParseListRef(args[1])
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(p *planner.Planner) error {
			b := p.Board()
			src, idx, ok := b.Find(id)
			if !ok {
				return fmt.Errorf("activity %d: %w", id, model.ErrNotFound)
			}
			to := flagIndex
			if to < 0 {
				items, err := b.List(dest)
				if err != nil {
					return err
				}
				to = len(items)
			}
			c, err := p.Drag(planner.Drag{ActivityID: id, Source: src, SourceIndex: idx, Dest: &dest, DestIndex: to})
			return apply(cmd, p, c, err)
		})
	},
}

var planAddDayCmd = &cobra.Command{
	Use:   "add-day [title]",
	Short: "Append a day to the timeline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, "")
		return withPlanner(cmd, func(p *planner.Planner) error {
			c, err := p.AddDay(title)
			return apply(cmd, p, c, err)
		})
	},
}

var planRemoveDayCmd = &cobra.Command{
	Use:   "remove-day <n>",
	Short: "Remove a day; its activities return to the backlog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := intArg(args[0], "day")
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(p *planner.Planner) error {
			c, err := p.RemoveDay(int(n))
			return apply(cmd, p, c, err)
		})
	},
}

var planRenameDayCmd = &cobra.Command{
	Use:   "rename-day <n> [title]",
	Short: "Set a day's title; without a title the default is restored",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := intArg(args[0], "day")
		if err != nil {
			return err
		}
		title := strings.Join(args[1:], "")
		return withPlanner(cmd, func(p *planner.Planner) error {
			c, err := p.UpdateDayTitle(int(n), title)
			return apply(cmd, p, c, err)
		})
	},
}

var planAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		a := patch.Apply(model.Activity{})
		in := model.ActivityInput{
			Title:       a.Title,
			Description: a.Description,
			Address:     a.Address,
			Price:       a.Price,
			Tags:        a.Tags,
			Rating:      a.Rating,
			ImageURL:    a.ImageURL,
		}
		if day, _ := cmd.Flags().GetInt("day"); day > 0 {
			p := model.OnDay(day)
			in.Status, in.Day = p.Status, p.Day
		}
		return withPlanner(cmd, func(p *planner.Planner) error {
			c, err := p.CreateActivity(in)
			return apply(cmd, p, c, err)
		})
	},
}

var planEditCmd = &cobra.Command{
	Use:   "edit <activity-id>",
	Short: "Change some fields of an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "activity id")
		if err != nil {
			return err
		}
		patch, err := patchFromFlags(cmd)
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(p *planner.Planner) error {
			c, err := p.EditActivity(id, patch)
			return apply(cmd, p, c, err)
		})
	},
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <activity-id>",
	Short: "Delete an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "activity id")
		if err != nil {
			return err
		}
		return withPlanner(cmd, func(p *planner.Planner) error {
			c, err := p.DeleteActivity(id)
			return apply(cmd, p, c, err)
		})
	},
}

var planSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find activities by title, description or address",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withPlanner(cmd, func(p *planner.Planner) error {
			found, err := p.Search(cmd.Context(), query)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(w, "no matches")
			}
			for _, a := range found {
				fmt.Fprintf(w, "#%d  %s  (%s)\n", a.ID, a.Title, a.Placement())
			}
			return nil
		})
	},
}

// patchFromFlags collects the activity fields that were set on the command
// line.
func patchFromFlags(cmd *cobra.Command) (model.ActivityPatch, error) {
	var patch model.ActivityPatch
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	num := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetFloat64(name)
		return &v
	}
	patch.Title = str("title")
	patch.Description = str("description")
	patch.Address = str("address")
	patch.ImageURL = str("image-url")
	patch.Price = num("price")
	patch.Rating = num("rating")
	if f.Lookup("clear-price") != nil {
		patch.ClearPrice, _ = f.GetBool("clear-price")
	}
	if f.Changed("tags") {
		tags, err := f.GetStringSlice("tags")
		if err != nil {
			return patch, err
		}
		patch.Tags = &tags
	}
	return patch, nil
}

// printBoard writes the backlog and every day, marking the active one.
func printBoard(w io.Writer, b planner.Board) {
	printList(w, fmt.Sprintf("Backlog (%d)", len(b.Backlog)), b.Backlog)
	for _, col := range b.Days {
		header := fmt.Sprintf("%d. %s (%d)", col.Day.Number, col.Day.DisplayTitle(), len(col.Activities))
		if col.Day.Number == b.ActiveDay {
			header += " *"
		}
		printList(w, header, col.Activities)
	}
}

func printList(w io.Writer, header string, items []model.Activity) {
	fmt.Fprintln(w, header)
	for _, a := range items {
		line := fmt.Sprintf("  #%d  %s", a.ID, a.Title)
		if a.Address != "" {
			line += "  @ " + a.Address
		}
		if a.Price != nil {
			line += fmt.Sprintf("  %.2f", *a.Price)
		}
		fmt.Fprintln(w, line)
	}
}
