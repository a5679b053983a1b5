package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"barakahAPI/internal/config"
	"barakahAPI/internal/store"
	"barakahAPI/internal/store/postgres"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type itemOptions struct {
	kind        string
	category    string
	title       string
	description string
	reward      int
	day         int
	youtubeID   string
	duration    string
}

// NewItemsCommand manages the item catalog in PostgreSQL.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List, add and (de)activate catalog items",
	}

	withCatalog := func(run func(ctx context.Context, admin store.CatalogAdmin, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(func(c *config.Config) { c.Store = config.StorePostgres })
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			s, err := postgres.New(ctx, pool, cfg.ReconcileInStore)
			if err != nil {
				return err
			}
			return run(ctx, s, cmd, args)
		}
	}

	var listKind string
	list := &cobra.Command{
		Use:   "list",
		Short: "List active items",
		Args:  cobra.NoArgs,
		RunE: withCatalog(func(ctx context.Context, admin store.CatalogAdmin, cmd *cobra.Command, args []string) error {
			return listItems(ctx, admin, listKind, rootOpts.Format, cmd.OutOrStdout())
		}),
	}
	list.Flags().StringVar(&listKind, "kind", "quest", "item kind (quest|video)")

	opts := &itemOptions{}
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an active item",
		Args:  cobra.NoArgs,
		RunE: withCatalog(func(ctx context.Context, admin store.CatalogAdmin, cmd *cobra.Command, args []string) error {
			item, err := addItem(ctx, admin, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", item.Kind, item.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&opts.kind, "kind", "quest", "item kind (quest|video)")
	add.Flags().StringVar(&opts.category, "category", "", "quest category (spiritual|mental|physical)")
	add.Flags().StringVar(&opts.title, "title", "", "title shown to users")
	add.Flags().StringVar(&opts.description, "description", "", "optional description")
	add.Flags().IntVar(&opts.reward, "reward", 10, "reward in BP")
	add.Flags().IntVar(&opts.day, "day", 0, "only offer the item on this observance day (1..30)")
	add.Flags().StringVar(&opts.youtubeID, "youtube-id", "", "YouTube video id (videos)")
	add.Flags().StringVar(&opts.duration, "duration", "", "display duration, e.g. 8:12 (videos)")
	add.MarkFlagRequired("title")

	setActive := func(use string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <item-id>",
			Short: fmt.Sprintf("Mark an item %sd", use),
			Args:  cobra.ExactArgs(1),
			RunE: withCatalog(func(ctx context.Context, admin store.CatalogAdmin, cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid item id %q: %w", args[0], err)
				}
				if err := admin.SetItemActive(ctx, id, active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %s active=%t\n", id, active)
				return nil
			}),
		}
	}

	cmd.AddCommand(list, add, setActive("activate", true), setActive("deactivate", false))
	return cmd
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func addItem(ctx context.Context, admin store.CatalogAdmin, opts *itemOptions) (*store.Item, error) {
	kind, err := store.ParseKind(opts.kind)
	if err != nil {
		return nil, err
	}
	if opts.title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if opts.reward <= 0 {
		return nil, fmt.Errorf("reward must be positive, got %d", opts.reward)
	}

	item := store.Item{
		Kind:        kind,
		Title:       opts.title,
		Description: strOrNil(opts.description),
		RewardBP:    opts.reward,
		IsActive:    true,
	}
	switch kind {
	case store.KindQuest:
		category := store.Category(opts.category)
		if !validCategory(category) {
			return nil, fmt.Errorf("quests need a category, one of %v", store.Categories)
		}
		item.Category = category
	case store.KindVideo:
		if opts.category != "" {
			return nil, fmt.Errorf("videos have no category")
		}
		item.YoutubeID = strOrNil(opts.youtubeID)
		item.Duration = strOrNil(opts.duration)
	}
	if opts.day != 0 {
		if opts.day < 1 || opts.day > 30 {
			return nil, fmt.Errorf("day must be between 1 and 30, got %d", opts.day)
		}
		item.ScheduledDay = intPtr(opts.day)
	}
	return admin.CreateItem(ctx, item)
}

func validCategory(c store.Category) bool {
	for _, known := range store.Categories {
		if c == known {
			return true
		}
	}
	return false
}

func listItems(ctx context.Context, admin store.CatalogAdmin, rawKind, format string, out io.Writer) error {
	kind, err := store.ParseKind(rawKind)
	if err != nil {
		return err
	}
	items, err := admin.ListActiveItems(ctx, kind)
	if err != nil {
		return err
	}
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tREWARD\tDAY\tTITLE")
	for _, item := range items {
		day := "-"
		if item.ScheduledDay != nil {
			day = fmt.Sprint(*item.ScheduledDay)
		}
		category := string(item.Category)
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", item.ID, category, item.RewardBP, day, item.Title)
	}
	return tw.Flush()
}
