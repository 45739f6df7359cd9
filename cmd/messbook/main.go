package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"messbook/internal/amqp"
	"messbook/internal/cli"
	"messbook/internal/core"
	applog "messbook/internal/log"
	"messbook/internal/services"
	"messbook/internal/storage"
)

const usage = `usage: messbook <command> [flags]

commands:
  distribute   allocate pending miscellaneous costs over members by meal count
  finalize     close the accounting period and archive the live ledger
  report       print the live report, or -period <id> for an archived one
  periods      list archive periods
  members      list members, or: members add -name N [-rank R] [-contribution A]
  items        list items, or: items add -name N -quantity Q -total A [-misc] [-drink]
  meal         record a meal: -date D -type T -members 1,2 [-items id:qty,...] [-extra A]
  drink        record a drink: -date D -item ID -member ID [-qty N]
  clear        delete live rows: -tables members,items,meal_records,...
`

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitRepository(logger, cfg.DBPath)
	defer repo.Close()

	store := services.NewStore(repo)
	clock := core.SystemClock{}
	reports := services.NewReportService(store, clock)

	// A dead broker must not block ledger operations.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, period closed events will not be published",
				applog.FieldError, err)
		} else {
			defer client.Close()
			events = client
		}
	}

	app := &app{
		repo:    repo,
		reports: reports,
		archive: services.NewArchiveService(store, reports, clock, events),
		posting: services.NewPostingService(store),
	}

	ctx := context.Background()
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("Command failed", "command", os.Args[1], applog.FieldError, err)
		os.Exit(1)
	}
}

type app struct {
	repo    *storage.Repository
	reports *services.ReportService
	archive *services.ArchiveService
	posting *services.PostingService
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "distribute":
		return a.distribute(ctx)
	case "finalize":
		return a.finalize(ctx)
	case "report":
		return a.report(ctx, args)
	case "periods":
		return a.periods(ctx)
	case "members":
		return a.members(ctx, args)
	case "items":
		return a.items(ctx, args)
	case "meal":
		return a.meal(ctx, args)
	case "drink":
		return a.drink(ctx, args)
	case "clear":
		return a.clear(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) distribute(ctx context.Context) error {
	periodID, err := a.archive.DistributeMiscellaneous(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("distributed miscellaneous costs under period %d\n", periodID)
	return nil
}

func (a *app) finalize(ctx context.Context) error {
	report, err := a.archive.FinalizeMonth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("closed period %q\n\n", report.PeriodName)
	printReport(report)
	return nil
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	periodID := fs.Int64("period", 0, "archived period id (0 for the live report)")
	fs.Parse(args)

	var (
		report *core.Report
		err    error
	)
	if *periodID > 0 {
		report, err = a.reports.Archived(ctx, *periodID)
	} else {
		report, err = a.reports.Current(ctx)
	}
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

func (a *app) periods(ctx context.Context) error {
	periods, err := a.reports.Periods(ctx)
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		fmt.Println("no archived periods")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tname\tstart\tend")
	for _, p := range periods {
		end := "open"
		if !p.Open() {
			end = p.End.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Start, end)
	}
	return w.Flush()
}

func (a *app) members(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "add" {
		fs := flag.NewFlagSet("members add", flag.ExitOnError)
		name := fs.String("name", "", "member name")
		rank := fs.String("rank", "", "member rank")
		contribution := fs.String("contribution", "0", "contribution amount")
		fs.Parse(args[1:])

		amount, err := core.ParseAmount(*contribution)
		if err != nil {
			return fmt.Errorf("contribution: %w", err)
		}
		id, err := a.repo.CreateMember(ctx, core.Member{
			Name:         *name,
			Rank:         *rank,
			Contribution: amount,
			Registered:   core.DateOf(core.SystemClock{}.Now()),
		})
		if err != nil {
			return err
		}
		fmt.Printf("added member %d\n", id)
		return nil
	}

	members, err := a.repo.ListMembers(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tname\trank\tcontribution\ttotal due")
	for _, m := range members {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			m.ID, m.Name, m.Rank,
			core.FormatAmount(m.Contribution), core.FormatAmount(m.TotalDue))
	}
	return w.Flush()
}

func (a *app) items(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "add" {
		fs := flag.NewFlagSet("items add", flag.ExitOnError)
		name := fs.String("name", "", "item name")
		quantity := fs.Int64("quantity", 0, "purchased quantity")
		total := fs.String("total", "0", "total price")
		misc := fs.Bool("misc", false, "miscellaneous overhead item")
		drink := fs.Bool("drink", false, "drink item")
		fs.Parse(args[1:])

		totalPrice, err := core.ParseAmount(*total)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		id, err := a.repo.CreateItem(ctx, core.Item{
			Name:          *name,
			Quantity:      *quantity,
			TotalPrice:    totalPrice,
			Miscellaneous: *misc,
			Drink:         *drink,
			Acquired:      core.DateOf(core.SystemClock{}.Now()),
		})
		if err != nil {
			return err
		}
		fmt.Printf("added item %d\n", id)
		return nil
	}

	items, err := a.repo.ListItems(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "id\tname\tqty\tremaining\tunit price\ttotal\tflags")
	for _, it := range items {
		var flags []string
		if it.Miscellaneous {
			flags = append(flags, "misc")
		}
		if it.Drink {
			flags = append(flags, "drink")
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\t%s\n",
			it.ID, it.Name, it.Quantity, it.Remaining,
			core.FormatAmount(it.Price), core.FormatAmount(it.TotalPrice),
			strings.Join(flags, ","))
	}
	return w.Flush()
}

func (a *app) meal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("meal", flag.ExitOnError)
	date := fs.String("date", "", "meal date (YYYY-MM-DD)")
	mealType := fs.String("type", "lunch", "breakfast, lunch or dinner")
	memberList := fs.String("members", "", "comma-separated member ids")
	itemList := fs.String("items", "", "comma-separated id:qty pairs")
	extra := fs.String("extra", "", "ad-hoc miscellaneous amount, split over members")
	fs.Parse(args)

	d, err := core.ParseDate(*date)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	memberIDs, err := parseIDList(*memberList)
	if err != nil {
		return fmt.Errorf("members: %w", err)
	}
	items, err := parseItemQuantities(*itemList)
	if err != nil {
		return fmt.Errorf("items: %w", err)
	}
	posting := services.MealPosting{
		Date:      d,
		MealType:  core.MealType(*mealType),
		Items:     items,
		MemberIDs: memberIDs,
	}
	if *extra != "" {
		if posting.Extra, err = core.ParseAmount(*extra); err != nil {
			return fmt.Errorf("extra: %w", err)
		}
	}
	if err := a.posting.RecordMeal(ctx, posting); err != nil {
		return err
	}
	fmt.Printf("recorded %s on %s for %d members\n", *mealType, d, len(memberIDs))
	return nil
}

func (a *app) drink(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drink", flag.ExitOnError)
	date := fs.String("date", "", "drink date (YYYY-MM-DD)")
	itemID := fs.Int64("item", 0, "drink item id")
	memberID := fs.Int64("member", 0, "member id")
	qty := fs.Int64("qty", 1, "quantity")
	fs.Parse(args)

	d, err := core.ParseDate(*date)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if err := a.posting.RecordDrink(ctx, d, *itemID, *memberID, *qty); err != nil {
		return err
	}
	fmt.Printf("recorded drink on %s\n", d)
	return nil
}

func (a *app) clear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	tables := fs.String("tables", "", "comma-separated live tables to clear")
	fs.Parse(args)

	if *tables == "" {
		return fmt.Errorf("no tables given")
	}
	names := strings.Split(*tables, ",")
	if err := a.repo.ClearTables(ctx, names...); err != nil {
		return err
	}
	fmt.Printf("cleared %s\n", strings.Join(names, ", "))
	return nil
}

func printReport(r *core.Report) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, s := range r.Summary {
		fmt.Fprintf(w, "%s\t%s\n", s.Label, core.FormatAmount(s.Amount))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "name\tcontribution\tmeals\tdrinks\tmisc\tconsumption\tbalance")
	rows := append(append([]core.MemberFinancial(nil), r.Members...), r.Totals)
	for _, m := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name,
			core.FormatAmount(m.Contribution),
			core.FormatAmount(m.MealCost),
			core.FormatAmount(m.DrinkCost),
			core.FormatAmount(m.MiscDistributed),
			core.FormatAmount(m.TotalConsumption),
			core.FormatAmount(m.FinalBalance))
	}
	w.Flush()
}

func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseItemQuantities(s string) (map[int64]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	out := make(map[int64]int64)
	for _, pair := range strings.Split(s, ",") {
		idStr, qtyStr, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("bad pair %q, want id:qty", pair)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", idStr)
		}
		qty, err := strconv.ParseInt(qtyStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad quantity %q", qtyStr)
		}
		out[id] = qty
	}
	return out, nil
}
