package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"papertrade-go/internal/config"
	"papertrade-go/internal/database"
	"papertrade-go/internal/events"
	"papertrade-go/internal/ledger"
	"papertrade-go/internal/logger"
	"papertrade-go/internal/models"
	"papertrade-go/internal/portfolio"
	"papertrade-go/internal/quote"
	"papertrade-go/internal/store"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var commands = []subcommands.Command{
	&provisionCmd{},
	&orderCmd{side: models.SideBuy},
	&orderCmd{side: models.SideSell},
	&portfolioCmd{},
	&historyCmd{},
	&quoteCmd{},
}

// app is what every command works against. It is opened per invocation.
type app struct {
	engine   *ledger.Engine
	valuator *portfolio.Valuator
	quotes   quote.Gateway
	db       *gorm.DB
	close    func()
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		return nil, err
	}
	// The CLI prints its own results; only warnings and errors are logged.
	log, err := logger.NewLogger("papertradectl", "warn", "console")
	if err != nil {
		return nil, err
	}
	startingCash, err := cfg.Ledger.Cash()
	if err != nil {
		return nil, err
	}
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	gw, closeGateway, err := quote.NewGateway(ctx, cfg, log)
	if err != nil {
		database.Close(db, log)
		return nil, err
	}
	publisher := events.NewPublisher(cfg.Events, log)

	engine := ledger.NewEngine(log, store.New(db), gw, publisher, startingCash)
	return &app{
		engine:   engine,
		valuator: portfolio.NewValuator(engine, gw, log),
		quotes:   gw,
		db:       db,
		close: func() {
			if err := publisher.Close(); err != nil {
				log.Warn("Failed to close event publisher", zap.Error(err))
			}
			closeGateway()
			database.Close(db, log)
			_ = log.Sync()
		},
	}, nil
}

// run opens the app, runs fn and maps its error to an exit status.
func run(ctx context.Context, fn func(a *app) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := fn(a); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func requireUser(f *flag.FlagSet, user string) error {
	if user == "" {
		return errors.New("-user is required")
	}
	if f.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", f.Args())
	}
	return nil
}

type provisionCmd struct {
	user  string
	email string
}

func (*provisionCmd) Name() string     { return "provision" }
func (*provisionCmd) Synopsis() string { return "create a paper-trading account with the starting cash" }
func (*provisionCmd) Usage() string {
	return `papertradectl provision -user <id> [-email <address>]

  Creates the account if it does not exist yet. Existing accounts are left
  untouched.
`
}

func (p *provisionCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.user, "user", "", "User identity.")
	f.StringVar(&p.email, "email", "", "Email recorded on the account.")
}

func (p *provisionCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := requireUser(f, p.user); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		account, created, err := a.engine.EnsureAccount(ctx, p.user, p.email)
		if err != nil {
			return err
		}
		verb := "exists"
		if created {
			verb = "created"
		}
		fmt.Printf("account %s %s, cash %s\n", account.ID, verb, account.CashBalance.StringFixed(2))
		return nil
	})
}

// orderCmd is registered twice, once per side.
type orderCmd struct {
	side  models.Side
	user  string
	qty   int64
	price string
}

func (o *orderCmd) Name() string { return string(o.side) }
func (o *orderCmd) Synopsis() string {
	return fmt.Sprintf("%s shares at a given price or at market", o.side)
}
func (o *orderCmd) Usage() string {
	return fmt.Sprintf(`papertradectl %s -user <id> -qty <n> [-price <p>] <symbol>

  Without -price the order executes at the current quote.
`, o.side)
}

func (o *orderCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&o.user, "user", "", "User identity.")
	f.Int64Var(&o.qty, "qty", 0, "Number of shares.")
	f.StringVar(&o.price, "price", "", "Execution price. Empty means market.")
}

func (o *orderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if o.user == "" || f.NArg() != 1 {
		fmt.Fprint(os.Stderr, o.Usage())
		return subcommands.ExitUsageError
	}
	order := ledger.Order{Symbol: f.Arg(0), Quantity: o.qty, Side: o.side}
	if o.price != "" {
		price, err := decimal.NewFromString(o.price)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid price %q: %v\n", o.price, err)
			return subcommands.ExitUsageError
		}
		order.Price = decimal.NewNullDecimal(price)
	}

	return run(ctx, func(a *app) error {
		res, err := a.engine.ExecuteOrder(ctx, o.user, order)
		if err != nil {
			return err
		}
		tx := res.Transaction
		fmt.Printf("%s %d %s @ %s = %s\n", tx.Side, tx.Quantity, tx.Symbol, tx.Price.StringFixed(2), tx.Total.StringFixed(2))
		fmt.Printf("cash %s, holding %d @ %s\n", res.Account.CashBalance.StringFixed(2), res.Holding.Quantity, res.Holding.AvgPrice.StringFixed(4))
		if tx.Side == models.SideSell {
			fmt.Printf("realized %s\n", res.RealizedGain.StringFixed(2))
		}
		return nil
	})
}

type portfolioCmd struct {
	user string
}

func (*portfolioCmd) Name() string     { return "portfolio" }
func (*portfolioCmd) Synopsis() string { return "value holdings against current quotes" }
func (*portfolioCmd) Usage() string {
	return `papertradectl portfolio -user <id>
`
}

func (p *portfolioCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.user, "user", "", "User identity.")
}

func (p *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := requireUser(f, p.user); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		val, err := a.valuator.Value(ctx, p.user)
		if err != nil {
			return err
		}
		printValuation(os.Stdout, val)
		return nil
	})
}

func printValuation(out io.Writer, val *portfolio.Valuation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "SYMBOL\tQTY\tAVG\tPRICE\tVALUE\tGAIN\tGAIN %\t")
	for _, p := range val.Positions {
		price := p.CurrentPrice.StringFixed(2)
		if !p.PriceAvailable {
			price += "*"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Symbol, p.Quantity, p.AvgPrice.StringFixed(2), price,
			p.CurrentValue.StringFixed(2), p.GainLoss.StringFixed(2), p.GainLossPercent.StringFixed(2))
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nportfolio %s  cash %s  total %s  gain %s\n",
		val.TotalPortfolioValue.StringFixed(2), val.CashBalance.StringFixed(2),
		val.TotalAccountValue.StringFixed(2), val.TotalGainLoss.StringFixed(2))
	if val.Degraded {
		fmt.Fprintln(out, "* quote unavailable, valued at average cost")
	}
}

type historyCmd struct {
	user  string
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list executed orders, newest first" }
func (*historyCmd) Usage() string {
	return `papertradectl history -user <id> [-n <limit>]
`
}

func (h *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&h.user, "user", "", "User identity.")
	f.IntVar(&h.limit, "n", 20, "Maximum number of transactions; 0 for all.")
}

func (h *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := requireUser(f, h.user); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		txs, err := a.engine.ListTransactions(ctx, h.user, h.limit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSIDE\tSYMBOL\tQTY\tPRICE\tTOTAL")
		for _, tx := range txs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				tx.CreatedAt.Format("2006-01-02 15:04"), tx.Side, tx.Symbol, tx.Quantity,
				tx.Price.StringFixed(2), tx.Total.StringFixed(2))
		}
		return w.Flush()
	})
}

type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "show the latest quote for one or more symbols" }
func (*quoteCmd) Usage() string {
	return `papertradectl quote <symbol>...
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprint(os.Stderr, (&quoteCmd{}).Usage())
		return subcommands.ExitUsageError
	}
	return run(ctx, func(a *app) error {
		for _, raw := range f.Args() {
			symbol, err := ledger.NormalizeSymbol(raw)
			if err != nil {
				return err
			}
			q, err := a.quotes.GetQuote(ctx, symbol)
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %10s %8s (%s%%)  vol %d\n", q.Symbol, q.Price.StringFixed(2),
				q.Change.StringFixed(2), q.ChangePercent.StringFixed(2), q.Volume)
		}
		return nil
	})
}
